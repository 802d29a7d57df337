package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsync/internal/ffmpeg"
	"github.com/smazurov/camsync/internal/hls"
	"github.com/smazurov/camsync/internal/supervisor"
)

var errStale = errors.New("playlist is stale")

// CreateInspectCmd creates the inspect command.
func CreateInspectCmd() *cobra.Command {
	var mediaRoot string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <playlist|slot>",
		Short: "Parse a rolling HLS playlist",
		Long: `Reports the media sequence, segment window and age of a playlist. ` +
			`A bare slot number resolves to <media-root>/stream<slot>/index.m3u8.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			path := args[0]
			if id, err := strconv.Atoi(path); err == nil {
				path = filepath.Join(supervisor.SlotDir(mediaRoot, id), ffmpeg.PlaylistName)
			}

			info, err := hls.Inspect(path, time.Now())
			if err != nil {
				return err
			}

			out := c.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(out, "playlist:        %s\n", path)
			fmt.Fprintf(out, "media sequence:  %d\n", info.MediaSequence)
			fmt.Fprintf(out, "segments:        %d (%.1fs, target %.0fs)\n", info.Segments, info.WindowDuration, info.TargetDuration)
			if info.NewestSegment != "" {
				fmt.Fprintf(out, "newest segment:  %s\n", info.NewestSegment)
			}
			if !info.ProgramDateTime.IsZero() {
				fmt.Fprintf(out, "program time:    %s\n", info.ProgramDateTime.Format(time.RFC3339Nano))
			}
			fmt.Fprintf(out, "age:             %s\n", info.Age.Round(time.Millisecond))
			if info.Stale() {
				fmt.Fprintln(out, "status:          stale")
				return errStale
			}
			fmt.Fprintln(out, "status:          live")
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaRoot, "media-root", "hls", "Directory the slots write HLS output under")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
