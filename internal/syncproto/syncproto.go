// Package syncproto defines the messages of the sync channel and the stream
// catalog, with strict decoding.
//
// On the WebSocket transport every message is an envelope:
//
//	{"event": "server-info", "data": {"serverStart": 1700000000000}}
//	{"event": "clock", "data": {"now": 1700000001000}}
//
// The SSE transport uses the event name as the SSE event and data as the
// payload. All timestamps are Unix epoch milliseconds.
package syncproto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event names.
const (
	EventServerInfo = "server-info"
	EventClock      = "clock"
)

var (
	// ErrUnknownEvent is returned for an envelope with an unrecognized event.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMalformed is returned for payloads that do not match the schema.
	ErrMalformed = errors.New("malformed message")
)

// Message is a payload that can travel on the sync channel.
type Message interface {
	Event() string
}

// ServerInfo is sent once per connection.
type ServerInfo struct {
	ServerStart int64 `json:"serverStart" doc:"Server launch epoch in Unix milliseconds"`
}

// Event implements Message.
func (ServerInfo) Event() string { return EventServerInfo }

// ClockTick is sent every broadcast interval.
type ClockTick struct {
	Now int64 `json:"now" doc:"Server time in Unix milliseconds"`
}

// Event implements Message.
func (ClockTick) Event() string { return EventClock }

// Envelope wraps a message on the WebSocket transport.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode wraps m in an envelope.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Event(), err)
	}
	return json.Marshal(Envelope{Event: m.Event(), Data: data})
}

// Decode parses an envelope and its payload.
func Decode(b []byte) (Message, error) {
	var env Envelope
	if err := strictUnmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	return DecodeEvent(env.Event, env.Data)
}

// DecodeEvent parses the payload of a named event.
func DecodeEvent(event string, data []byte) (Message, error) {
	switch event {
	case EventServerInfo:
		var raw struct {
			ServerStart *int64 `json:"serverStart"`
		}
		if err := strictUnmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, event, err)
		}
		if raw.ServerStart == nil || *raw.ServerStart < 0 {
			return nil, fmt.Errorf("%w: %s: serverStart missing or negative", ErrMalformed, event)
		}
		return ServerInfo{ServerStart: *raw.ServerStart}, nil

	case EventClock:
		var raw struct {
			Now *int64 `json:"now"`
		}
		if err := strictUnmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, event, err)
		}
		if raw.Now == nil || *raw.Now < 0 {
			return nil, fmt.Errorf("%w: %s: now missing or negative", ErrMalformed, event)
		}
		return ClockTick{Now: *raw.Now}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

// strictUnmarshal rejects unknown fields, trailing data and non-objects.
func strictUnmarshal(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("expected a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

// Millis converts t to Unix epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Time converts Unix epoch milliseconds to a time.Time.
func Time(ms int64) time.Time {
	return time.UnixMilli(ms)
}
