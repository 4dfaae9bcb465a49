package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestWrapFormat(t *testing.T) {
	base := fmt.Errorf("boom")
	err := Wrap(base, "Gate", "OnEvent", "sink write")
	require.Error(t, err)
	assert.Equal(t, "Gate.OnEvent: sink write failed: boom", err.Error())
	assert.ErrorIs(t, err, base)

	assert.NoError(t, Wrap(nil, "Gate", "OnEvent", "sink write"))
}

func TestClassifiedWrappers(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		check func(error) bool
	}{
		{"transient", WrapTransient, IsTransient},
		{"invalid", WrapInvalid, IsInvalid},
		{"fatal", WrapFatal, IsFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(fmt.Errorf("boom"), "Comp", "Method", "action")
			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.NoError(t, tt.wrap(nil, "Comp", "Method", "action"))
		})
	}
}

func TestSentinelClassification(t *testing.T) {
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsInvalid(ErrClientPattern))
	assert.True(t, IsInvalid(ErrMissingField))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrSinkUnavailable))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsFatal(nil))
}

func TestClassifiedWinsOverPatterns(t *testing.T) {
	// Explicit classification beats message-pattern matching
	err := WrapFatal(fmt.Errorf("connection refused"), "Comp", "Method", "action")
	assert.True(t, IsFatal(err))
	assert.False(t, IsTransient(err))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(ErrConnectionTimeout))
	assert.Equal(t, ErrorInvalid, Classify(ErrParsingFailed))
	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
	// Unknown errors default to transient so callers may retry
	assert.Equal(t, ErrorTransient, Classify(fmt.Errorf("mystery")))
}

func TestWrappedSentinelSurvivesUnwrap(t *testing.T) {
	err := WrapTransient(ErrConsumerGone, "Writer", "Append", "sink write")
	assert.ErrorIs(t, err, ErrConsumerGone)
}

func TestRetryConfigShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.True(t, cfg.ShouldRetry(ErrConnectionLost, 0))
	assert.False(t, cfg.ShouldRetry(ErrConnectionLost, cfg.MaxRetries))
	assert.False(t, cfg.ShouldRetry(ErrInvalidConfig, 0))
	assert.False(t, cfg.ShouldRetry(nil, 0))
}

func TestToRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig().ToRetryConfig()
	assert.Equal(t, DefaultRetryConfig().MaxRetries+1, cfg.MaxAttempts)
	assert.True(t, cfg.AddJitter)
}
