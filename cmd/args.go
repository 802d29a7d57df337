package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsync/internal/config"
	"github.com/smazurov/camsync/internal/ffmpeg"
	"github.com/smazurov/camsync/internal/supervisor"
)

// argsOptions mirrors the server settings that shape a slot's command.
type argsOptions struct {
	Config        string
	DefaultSource string `toml:"pipeline.source_url" env:"SOURCE_URL"`
	SourcesFile   string `toml:"pipeline.sources_file" env:"SOURCES_FILE"`
	MediaRoot     string `toml:"pipeline.media_root" env:"MEDIA_ROOT"`

	FrameRate      int `toml:"pipeline.frame_rate" env:"FRAME_RATE"`
	SegmentSeconds int `toml:"pipeline.segment_seconds" env:"SEGMENT_SECONDS"`
	PlaylistSize   int `toml:"pipeline.playlist_size" env:"PLAYLIST_SIZE"`
	Width          int `toml:"pipeline.width" env:"WIDTH"`
	Bitrate        int `toml:"pipeline.bitrate" env:"BITRATE"`
}

// CreateArgsCmd creates the args command.
func CreateArgsCmd() *cobra.Command {
	opts := &argsOptions{
		Config:        "config.toml",
		DefaultSource: "rtsp://localhost:8554/live",
		SourcesFile:   "streams.toml",
		MediaRoot:     "hls",
		Width:         -1,
	}

	cmd := &cobra.Command{
		Use:   "args <slot>",
		Short: "Print the ffmpeg command for a slot",
		Long: `Builds the validated transcoder command line slot <slot> would be launched with, ` +
			`using the same config.toml and streams.toml as the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 1 {
				return fmt.Errorf("slot must be a positive integer, got %q", args[0])
			}

			if err := config.LoadConfig(opts, c); err != nil {
				return err
			}
			sources, err := config.LoadSources(opts.SourcesFile)
			if err != nil {
				return err
			}
			src := sources.Resolve(id, opts.DefaultSource)

			provider := supervisor.FFmpegCommand(PipelineParams(PipelineOptions{
				FrameRate:      opts.FrameRate,
				SegmentSeconds: opts.SegmentSeconds,
				PlaylistSize:   opts.PlaylistSize,
				Width:          opts.Width,
				Bitrate:        opts.Bitrate,
			}))
			command, err := provider(supervisor.SlotSpec{
				ID:        id,
				Source:    supervisor.Source{URI: src.Source, Options: src.Options},
				OutputDir: supervisor.SlotDir(opts.MediaRoot, id),
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(c.OutOrStdout(), ffmpeg.QuoteCommand(command.Name, command.Args))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", opts.Config, "Path to configuration file")
	cmd.Flags().StringVar(&opts.DefaultSource, "default-source", opts.DefaultSource, "Input for slots without an entry in the sources file")
	cmd.Flags().StringVar(&opts.SourcesFile, "sources-file", opts.SourcesFile, "Per-slot source overrides")
	cmd.Flags().StringVar(&opts.MediaRoot, "media-root", opts.MediaRoot, "Directory the slots write HLS output under")
	return cmd
}
