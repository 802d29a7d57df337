package syncproto

import (
	"encoding/json"
	"fmt"
)

// StreamDescriptor names one stream and where its playlist lives.
type StreamDescriptor struct {
	ID  int    `json:"id" doc:"Slot ID" minimum:"1"`
	URL string `json:"url" doc:"Playlist path" example:"/hls/stream1/index.m3u8"`
}

// Catalog is the /streams response.
type Catalog struct {
	Streams     []StreamDescriptor `json:"streams"`
	ServerStart int64              `json:"serverStart" doc:"Server launch epoch in Unix milliseconds"`
}

// Validate checks IDs are positive and unique and URLs are present.
func (c Catalog) Validate() error {
	if c.ServerStart < 0 {
		return fmt.Errorf("%w: negative serverStart", ErrMalformed)
	}
	seen := make(map[int]bool, len(c.Streams))
	for _, s := range c.Streams {
		if s.ID < 1 {
			return fmt.Errorf("%w: stream id %d", ErrMalformed, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate stream id %d", ErrMalformed, s.ID)
		}
		seen[s.ID] = true
		if s.URL == "" {
			return fmt.Errorf("%w: stream %d has no url", ErrMalformed, s.ID)
		}
	}
	return nil
}

// DecodeCatalog parses and validates a catalog body.
func DecodeCatalog(b []byte) (Catalog, error) {
	var raw struct {
		Streams     *[]StreamDescriptor `json:"streams"`
		ServerStart *int64              `json:"serverStart"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Catalog{}, fmt.Errorf("%w: catalog: %v", ErrMalformed, err)
	}
	if raw.Streams == nil || raw.ServerStart == nil {
		return Catalog{}, fmt.Errorf("%w: catalog: streams and serverStart are required", ErrMalformed)
	}
	c := Catalog{Streams: *raw.Streams, ServerStart: *raw.ServerStart}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}
