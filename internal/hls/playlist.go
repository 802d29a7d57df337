// Package hls inspects the media playlists the transcoders write.
package hls

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/grafov/m3u8"
)

// ErrNotMediaPlaylist is returned for master playlists.
var ErrNotMediaPlaylist = errors.New("not a media playlist")

// staleFactor is how many target durations a playlist may go unwritten
// before it counts as stale.
const staleFactor = 3

// PlaylistInfo summarizes a rolling media playlist.
type PlaylistInfo struct {
	MediaSequence   uint64        `json:"media_sequence" doc:"Sequence number of the oldest segment"`
	Segments        int           `json:"segments" doc:"Segments in the window"`
	TargetDuration  float64       `json:"target_duration" doc:"EXT-X-TARGETDURATION in seconds"`
	WindowDuration  float64       `json:"window_duration" doc:"Sum of segment durations in seconds"`
	NewestSegment   string        `json:"newest_segment,omitempty"`
	ProgramDateTime time.Time     `json:"program_date_time,omitzero" doc:"Wall clock of the newest segment"`
	ModTime         time.Time     `json:"mod_time,omitzero" doc:"When the playlist file was last written"`
	Age             time.Duration `json:"age" doc:"Time since the playlist was last written, in nanoseconds"`
	Ended           bool          `json:"ended" doc:"Playlist carries EXT-X-ENDLIST"`
}

// Parse reads a media playlist.
func Parse(r io.Reader) (PlaylistInfo, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return PlaylistInfo{}, fmt.Errorf("failed to parse playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return PlaylistInfo{}, ErrNotMediaPlaylist
	}
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return PlaylistInfo{}, ErrNotMediaPlaylist
	}

	info := PlaylistInfo{
		MediaSequence:  media.SeqNo,
		TargetDuration: media.TargetDuration,
		Ended:          media.Closed,
	}
	for _, seg := range media.Segments {
		if seg == nil {
			break
		}
		info.Segments++
		info.WindowDuration += seg.Duration
		info.NewestSegment = seg.URI
		if !seg.ProgramDateTime.IsZero() {
			info.ProgramDateTime = seg.ProgramDateTime
		}
	}
	return info, nil
}

// Inspect parses the playlist at path and stamps it with the file's age
// relative to now.
func Inspect(path string, now time.Time) (PlaylistInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return PlaylistInfo{}, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return PlaylistInfo{}, err
	}

	info, err := Parse(f)
	if err != nil {
		return PlaylistInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	info.ModTime = stat.ModTime()
	info.Age = max(0, now.Sub(info.ModTime))
	return info, nil
}

// Stale reports whether the playlist has not been rewritten for several
// target durations, which means the transcoder has stopped producing.
func (p PlaylistInfo) Stale() bool {
	if p.Ended {
		return true
	}
	limit := time.Duration(staleFactor * p.TargetDuration * float64(time.Second))
	return p.Age > limit
}
