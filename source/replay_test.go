package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler captures deliveries and follows a stop script
type recordingHandler struct {
	connected  bool
	events     [][]byte
	errorCodes []int
	stopAfter  int // stop once this many events have been delivered; 0 = never
	stopOnErr  bool
}

func (h *recordingHandler) OnConnect() {
	h.connected = true
}

func (h *recordingHandler) OnEvent(event Event) Signal {
	h.events = append(h.events, event.Data)
	if h.stopAfter > 0 && len(h.events) >= h.stopAfter {
		return Stop
	}
	return Continue
}

func (h *recordingHandler) OnError(code int) Signal {
	h.errorCodes = append(h.errorCodes, code)
	if h.stopOnErr {
		return Stop
	}
	return Continue
}

func TestReplayDeliversInOrder(t *testing.T) {
	replay := NewReplay([]Item{
		{Data: []byte(`{"n":1}`)},
		{Data: []byte(`{"n":2}`)},
		{Data: []byte(`{"n":3}`)},
	}, Filter{})

	handler := &recordingHandler{}
	require.NoError(t, replay.Stream(context.Background(), handler))

	assert.True(t, handler.connected)
	require.Len(t, handler.events, 3)
	assert.Equal(t, `{"n":1}`, string(handler.events[0]))
	assert.Equal(t, `{"n":3}`, string(handler.events[2]))
}

func TestReplayStopsOnHandlerSignal(t *testing.T) {
	replay := NewReplay([]Item{
		{Data: []byte(`{"n":1}`)},
		{Data: []byte(`{"n":2}`)},
		{Data: []byte(`{"n":3}`)},
	}, Filter{})

	handler := &recordingHandler{stopAfter: 2}
	require.NoError(t, replay.Stream(context.Background(), handler))
	assert.Len(t, handler.events, 2)
}

func TestReplayDeliversErrorCodes(t *testing.T) {
	replay := NewReplay([]Item{
		{Data: []byte(`{"n":1}`)},
		{ErrorCode: 503},
		{Data: []byte(`{"n":2}`)},
	}, Filter{})

	handler := &recordingHandler{}
	require.NoError(t, replay.Stream(context.Background(), handler))

	assert.Equal(t, []int{503}, handler.errorCodes)
	assert.Len(t, handler.events, 2)
}

func TestReplayStopOnError(t *testing.T) {
	replay := NewReplay([]Item{
		{ErrorCode: CodeRateLimited},
		{Data: []byte(`{"n":1}`)},
	}, Filter{})

	handler := &recordingHandler{stopOnErr: true}
	require.NoError(t, replay.Stream(context.Background(), handler))

	assert.Equal(t, []int{CodeRateLimited}, handler.errorCodes)
	assert.Empty(t, handler.events)
}

func TestReplayHonoursContext(t *testing.T) {
	replay := NewReplay([]Item{{Data: []byte(`{"n":1}`)}}, Filter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler := &recordingHandler{}
	err := replay.Stream(ctx, handler)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, handler.events)
}

func TestReplayAppliesFilter(t *testing.T) {
	replay := NewReplay([]Item{
		{Data: []byte(`{"text":"all about Golang"}`)},
		{Data: []byte(`{"text":"nothing relevant"}`)},
		{Data: []byte(`{"text":"GOLANG again"}`)},
	}, Filter{Track: []string{"golang"}})

	handler := &recordingHandler{}
	require.NoError(t, replay.Stream(context.Background(), handler))
	assert.Len(t, handler.events, 2)
}

func TestNewReplayFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.jsonl")
	content := "{\"n\":1}\n{\"n\":2}\n{\"n\":"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	replay, err := NewReplayFromFile(path, Filter{})
	require.NoError(t, err)

	handler := &recordingHandler{}
	require.NoError(t, replay.Stream(context.Background(), handler))

	// The truncated unparsable tail is dropped silently
	require.Len(t, handler.events, 2)
	assert.Equal(t, `{"n":2}`, string(handler.events[1]))
}

func TestNewReplayFromFileKeepsCompleteTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}\n{\"n\":2}"), 0o644))

	replay, err := NewReplayFromFile(path, Filter{})
	require.NoError(t, err)

	handler := &recordingHandler{}
	require.NoError(t, replay.Stream(context.Background(), handler))
	assert.Len(t, handler.events, 2)
}

func TestNewReplayFromFileMissing(t *testing.T) {
	_, err := NewReplayFromFile(filepath.Join(t.TempDir(), "absent.jsonl"), Filter{})
	assert.Error(t, err)
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		data   string
		want   bool
	}{
		{"empty filter matches all", Filter{}, `{"text":"anything"}`, true},
		{"keyword present", Filter{Track: []string{"coffee"}}, `{"text":"morning coffee"}`, true},
		{"keyword case-insensitive", Filter{Track: []string{"Coffee"}}, `{"text":"COFFEE time"}`, true},
		{"keyword absent", Filter{Track: []string{"coffee"}}, `{"text":"morning tea"}`, false},
		{"any keyword suffices", Filter{Track: []string{"coffee", "tea"}}, `{"text":"morning tea"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match([]byte(tt.data)))
		})
	}
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "continue", Continue.String())
	assert.Equal(t, "stop", Stop.String())
	assert.Equal(t, "unknown", Signal(9).String())
}
