package source

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
	"github.com/Zeppelin-and-Pails/Victualiser/sink"
)

// Item is one scripted delivery in a replay stream. When ErrorCode is
// nonzero the item is delivered to OnError instead of OnEvent.
type Item struct {
	Data      json.RawMessage
	ErrorCode int
}

// Replay delivers a fixed event list into a handler. It backs offline
// runs from captured JSONL files and serves as the stream double in tests.
type Replay struct {
	items  []Item
	filter Filter
}

// NewReplay creates a replay source over a scripted item list
func NewReplay(items []Item, filter Filter) *Replay {
	return &Replay{items: items, filter: filter}
}

// NewReplayFromFile loads one JSONL file into a replay source.
// Each line becomes one event; a truncated final line is dropped.
func NewReplayFromFile(path string, filter Filter) (*Replay, error) {
	reader, err := sink.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Replay", "NewReplayFromFile", "replay file open")
	}
	defer func() { _ = reader.Close() }()

	var items []Item
	scanner := sink.NewScanner(reader)
	for scanner.Scan() {
		if scanner.Truncated() && !json.Valid(scanner.Bytes()) {
			break
		}
		data := make([]byte, len(scanner.Bytes()))
		copy(data, scanner.Bytes())
		items = append(items, Item{Data: data})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Replay", "NewReplayFromFile", "replay file read")
	}

	return NewReplay(items, filter), nil
}

// Stream delivers every item in order until the handler signals Stop or
// the context is cancelled. Exhausting the item list returns nil.
func (r *Replay) Stream(ctx context.Context, handler Handler) error {
	handler.OnConnect()

	for _, item := range r.items {
		if ctx.Err() != nil {
			return errors.WrapTransient(ctx.Err(), "Replay", "Stream", "context check")
		}

		if item.ErrorCode != 0 {
			if handler.OnError(item.ErrorCode) == Stop {
				return nil
			}
			continue
		}

		if !r.filter.Match(item.Data) {
			continue
		}

		event := Event{Data: item.Data, Received: time.Now()}
		if handler.OnEvent(event) == Stop {
			return nil
		}
	}

	return nil
}
