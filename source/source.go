// Package source defines the upstream record-source boundary and its
// adapters. A Source drives a Handler one event at a time; the Handler's
// return signals are the only control channel back to the provider.
package source

import (
	"bytes"
	"context"
	"time"
)

// CodeRateLimited is the provider status code for connection throttling.
// A provider that returns this code wants the client to disconnect and
// back off; continuing to reconnect risks a ban.
const CodeRateLimited = 420

// Signal is a handler's instruction back to the stream provider
type Signal int

const (
	// Continue keeps the stream open
	Continue Signal = iota
	// Stop terminates the stream cleanly
	Stop
)

// String returns a string representation of the signal
func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Event is one upstream record as delivered by a provider
type Event struct {
	Data     []byte    // raw event payload, one JSON object
	Received time.Time // arrival time at this process
}

// Handler consumes events from a Source. OnEvent and OnError return
// values are the only way to end the stream from the consuming side.
type Handler interface {
	// OnConnect is called once when the provider connection is established
	OnConnect()

	// OnEvent delivers one event; returning Stop ends the stream
	OnEvent(event Event) Signal

	// OnError reports a provider status code; returning Stop ends the stream
	OnError(code int) Signal
}

// Source streams events into a handler until the handler signals Stop,
// the context is cancelled, or the provider fails permanently.
// A nil return means the stream ended by handler signal or exhaustion.
type Source interface {
	Stream(ctx context.Context, handler Handler) error
}

// Filter selects which upstream events a source delivers.
// Track keywords match case-insensitively, OR semantics. When no keywords
// are given, Locations provides a geographic bounding-box fallback that
// providers apply server-side; locally it matches everything.
type Filter struct {
	Track     []string  `json:"track,omitempty"`
	Locations []float64 `json:"locations,omitempty"`
}

// WorldLocations is the bounding box covering the whole globe, used as
// the fallback filter when no keywords are configured.
var WorldLocations = []float64{-180, -90, 180, 90}

// Match reports whether an event payload passes the keyword filter
func (f Filter) Match(data []byte) bool {
	if len(f.Track) == 0 {
		return true
	}
	lower := bytes.ToLower(data)
	for _, keyword := range f.Track {
		if bytes.Contains(lower, bytes.ToLower([]byte(keyword))) {
			return true
		}
	}
	return false
}
