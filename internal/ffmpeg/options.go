package ffmpeg

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// OptionType represents a strongly typed FFmpeg input option
type OptionType string

// FFmpeg option constants
const (
	OptionRTSPTCP            OptionType = "rtsp_tcp"
	OptionRTSPUDP            OptionType = "rtsp_udp"
	OptionGeneratePTS        OptionType = "genpts"
	OptionIgnoreDTS          OptionType = "igndts"
	OptionIgnoreErrors       OptionType = "ignore_err"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
	OptionLowLatency         OptionType = "low_latency"
	OptionNativeRate         OptionType = "native_rate"
	OptionLoopInput          OptionType = "loop"
)

// ErrUnknownOption is returned for option keys missing from AllOptions.
var ErrUnknownOption = errors.New("unknown ffmpeg option")

// ErrConflictingOptions is returned when selected options cannot be combined.
var ErrConflictingOptions = errors.New("conflicting ffmpeg options")

// OptionCategory represents option categories
type OptionCategory string

const (
	CategoryTransport   OptionCategory = "Transport"
	CategoryTiming      OptionCategory = "Timing"
	CategoryErrorHandle OptionCategory = "Error Handling"
	CategoryPerformance OptionCategory = "Performance"
)

// ExclusiveGroup represents a group of mutually exclusive options
type ExclusiveGroup string

const (
	GroupRTSPTransport ExclusiveGroup = "rtsp_transport"
	GroupThreadQueue   ExclusiveGroup = "thread_queue"
)

// Option describes an input flag with metadata for the API.
type Option struct {
	Key            OptionType      `json:"key"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       OptionCategory  `json:"category"`
	AppDefault     bool            `json:"app_default"`
	RTSPOnly       bool            `json:"rtsp_only,omitempty"` // skipped for non-RTSP sources
	ExclusiveGroup *ExclusiveGroup `json:"exclusive_group,omitempty"`
	ConflictsWith  []OptionType    `json:"conflicts_with,omitempty"`
}

func group(g ExclusiveGroup) *ExclusiveGroup { return &g }

// AllOptions lists every input option the builder understands.
var AllOptions = []Option{
	{
		Key:            OptionRTSPTCP,
		Name:           "RTSP over TCP",
		Description:    "Interleave RTSP media on the control connection",
		Category:       CategoryTransport,
		AppDefault:     true,
		RTSPOnly:       true,
		ExclusiveGroup: group(GroupRTSPTransport),
	},
	{
		Key:            OptionRTSPUDP,
		Name:           "RTSP over UDP",
		Description:    "Receive RTSP media on separate UDP ports",
		Category:       CategoryTransport,
		RTSPOnly:       true,
		ExclusiveGroup: group(GroupRTSPTransport),
	},
	{
		Key:           OptionGeneratePTS,
		Name:          "Generate PTS",
		Description:   "Generate missing presentation timestamps",
		Category:      CategoryTiming,
		ConflictsWith: []OptionType{OptionWallclockTimestamp},
	},
	{
		Key:         OptionIgnoreDTS,
		Name:        "Ignore DTS",
		Description: "Ignore decode timestamps from cameras that emit broken ones",
		Category:    CategoryErrorHandle,
	},
	{
		Key:         OptionIgnoreErrors,
		Name:        "Ignore Errors",
		Description: "Continue decoding despite bitstream errors",
		Category:    CategoryErrorHandle,
	},
	{
		Key:           OptionWallclockTimestamp,
		Name:          "Wallclock Timestamps",
		Description:   "Stamp packets with the receive time",
		Category:      CategoryTiming,
		ConflictsWith: []OptionType{OptionGeneratePTS},
	},
	{
		Key:            OptionThreadQueue1024,
		Name:           "Large Thread Queue",
		Description:    "Use a 1024 packet input queue",
		Category:       CategoryPerformance,
		ExclusiveGroup: group(GroupThreadQueue),
	},
	{
		Key:            OptionThreadQueue4096,
		Name:           "Extra Large Thread Queue",
		Description:    "Use a 4096 packet input queue",
		Category:       CategoryPerformance,
		ExclusiveGroup: group(GroupThreadQueue),
	},
	{
		Key:         OptionLowLatency,
		Name:        "Low Latency Mode",
		Description: "Disable input buffering and request low delay decoding",
		Category:    CategoryPerformance,
	},
	{
		Key:         OptionNativeRate,
		Name:        "Native Rate",
		Description: "Read file inputs at their native frame rate",
		Category:    CategoryTiming,
	},
	{
		Key:         OptionLoopInput,
		Name:        "Loop Input",
		Description: "Loop a file input forever",
		Category:    CategoryTiming,
	},
}

// GetOptionByKey returns an option by its key
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// ValidateOptions rejects unknown keys, exclusive group violations and conflicts.
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup][]string)
	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil {
			return fmt.Errorf("%w: %q", ErrUnknownOption, key)
		}
		if option.ExclusiveGroup != nil {
			groups[*option.ExclusiveGroup] = append(groups[*option.ExclusiveGroup], option.Name)
		}
	}

	for g, names := range groups {
		if len(names) > 1 {
			return fmt.Errorf("%w: group %s: %s", ErrConflictingOptions, g, strings.Join(names, ", "))
		}
	}

	for _, key := range selected {
		option := GetOptionByKey(key)
		for _, other := range option.ConflictsWith {
			if slices.Contains(selected, other) {
				return fmt.Errorf("%w: %s with %s", ErrConflictingOptions, option.Name, GetOptionByKey(other).Name)
			}
		}
	}

	return nil
}

// GetDefaultOptions returns the options enabled when a slot configures none.
func GetDefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// InputArgs renders options as arguments placed before -i.
// RTSP-only options are dropped when rtsp is false.
func InputArgs(options []OptionType, rtsp bool) []string {
	var args, fflags []string

	for _, key := range options {
		if option := GetOptionByKey(key); option != nil && option.RTSPOnly && !rtsp {
			continue
		}
		switch key {
		case OptionRTSPTCP:
			args = append(args, "-rtsp_transport", "tcp")
		case OptionRTSPUDP:
			args = append(args, "-rtsp_transport", "udp")
		case OptionGeneratePTS:
			fflags = append(fflags, "+genpts")
		case OptionIgnoreDTS:
			fflags = append(fflags, "+igndts")
		case OptionIgnoreErrors:
			args = append(args, "-err_detect", "ignore_err")
		case OptionWallclockTimestamp:
			args = append(args, "-use_wallclock_as_timestamps", "1")
		case OptionThreadQueue1024:
			args = append(args, "-thread_queue_size", "1024")
		case OptionThreadQueue4096:
			args = append(args, "-thread_queue_size", "4096")
		case OptionLowLatency:
			fflags = append(fflags, "+nobuffer")
			args = append(args, "-flags", "low_delay")
		case OptionNativeRate:
			args = append(args, "-re")
		case OptionLoopInput:
			args = append(args, "-stream_loop", "-1")
		}
	}

	if len(fflags) > 0 {
		args = append(args, "-fflags", strings.Join(fflags, ""))
	}
	return args
}
