package ffmpeg

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name    string
		options []OptionType
		wantErr error
	}{
		{"empty", nil, nil},
		{"defaults", GetDefaultOptions(), nil},
		{"compatible", []OptionType{OptionRTSPTCP, OptionLowLatency, OptionIgnoreDTS}, nil},
		{"unknown", []OptionType{"bogus"}, ErrUnknownOption},
		{"two transports", []OptionType{OptionRTSPTCP, OptionRTSPUDP}, ErrConflictingOptions},
		{"two queue sizes", []OptionType{OptionThreadQueue1024, OptionThreadQueue4096}, ErrConflictingOptions},
		{"genpts with wallclock", []OptionType{OptionGeneratePTS, OptionWallclockTimestamp}, ErrConflictingOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOptions(tt.options)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEveryOptionRendersArgs(t *testing.T) {
	for _, option := range AllOptions {
		if args := InputArgs([]OptionType{option.Key}, true); len(args) == 0 {
			t.Errorf("option %s produced no arguments", option.Key)
		}
	}
}

func TestInputArgs(t *testing.T) {
	tests := []struct {
		name    string
		options []OptionType
		rtsp    bool
		want    []string
	}{
		{
			name:    "tcp transport for rtsp",
			options: []OptionType{OptionRTSPTCP},
			rtsp:    true,
			want:    []string{"-rtsp_transport", "tcp"},
		},
		{
			name:    "transport skipped for files",
			options: []OptionType{OptionRTSPTCP, OptionNativeRate, OptionLoopInput},
			rtsp:    false,
			want:    []string{"-re", "-stream_loop", "-1"},
		},
		{
			name:    "fflags merged",
			options: []OptionType{OptionGeneratePTS, OptionIgnoreDTS, OptionLowLatency},
			rtsp:    true,
			want:    []string{"-flags", "low_delay", "-fflags", "+genpts+igndts+nobuffer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InputArgs(tt.options, tt.rtsp)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("InputArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}
