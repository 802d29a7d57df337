// Package catalog enumerates the stream slots and the server epoch.
package catalog

import (
	"path"
	"strconv"
	"time"

	"github.com/smazurov/camsync/internal/ffmpeg"
	"github.com/smazurov/camsync/internal/syncproto"
)

// DefaultPrefix is where the HLS root is served.
const DefaultPrefix = "/hls"

// Catalog describes slots 1..Count against a fixed epoch.
type Catalog struct {
	epoch  time.Time
	count  int
	prefix string
}

// New returns a catalog for count slots. The epoch is fixed for the
// catalog's lifetime.
func New(epoch time.Time, count int) *Catalog {
	return &Catalog{epoch: epoch, count: count, prefix: DefaultPrefix}
}

// Epoch returns the server launch time.
func (c *Catalog) Epoch() time.Time {
	return c.epoch
}

// Count returns the number of slots.
func (c *Catalog) Count() int {
	return c.count
}

// PlaylistURL returns the URL path of a slot's playlist.
func (c *Catalog) PlaylistURL(id int) string {
	return path.Join(c.prefix, "stream"+strconv.Itoa(id), ffmpeg.PlaylistName)
}

// Snapshot builds the /streams response.
func (c *Catalog) Snapshot() syncproto.Catalog {
	streams := make([]syncproto.StreamDescriptor, 0, c.count)
	for id := 1; id <= c.count; id++ {
		streams = append(streams, syncproto.StreamDescriptor{ID: id, URL: c.PlaylistURL(id)})
	}
	return syncproto.Catalog{
		Streams:     streams,
		ServerStart: syncproto.Millis(c.epoch),
	}
}
