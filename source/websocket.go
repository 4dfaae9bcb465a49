package source

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
	"github.com/Zeppelin-and-Pails/Victualiser/pkg/retry"
)

const wsReadDeadline = 90 * time.Second

// WebSocket streams events from an upstream websocket endpoint.
// Transient connection failures are retried with exponential backoff;
// provider close codes are surfaced to the handler's OnError.
type WebSocket struct {
	url     string
	filter  Filter
	logger  *slog.Logger
	backoff retry.Config

	onReconnect func()     // optional metrics hook
	onStatus    func(bool) // optional connection-status hook
}

// NewWebSocket creates a websocket source for the given endpoint
func NewWebSocket(url string, filter Filter, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocket{
		url:     url,
		filter:  filter,
		logger:  logger.With("source", "websocket"),
		backoff: retry.Persistent(),
	}
}

// OnReconnect registers a hook invoked once per reconnection attempt
func (w *WebSocket) OnReconnect(fn func()) {
	w.onReconnect = fn
}

// OnStatus registers a hook invoked on every connection status change
func (w *WebSocket) OnStatus(fn func(connected bool)) {
	w.onStatus = fn
}

func (w *WebSocket) reportStatus(connected bool) {
	if w.onStatus != nil {
		w.onStatus(connected)
	}
}

// Stream connects to the endpoint and delivers events until the handler
// signals Stop, the context is cancelled, or reconnection gives up.
func (w *WebSocket) Stream(ctx context.Context, handler Handler) error {
	connected := false

	for {
		conn, err := w.dial(ctx)
		if err != nil {
			return errors.WrapTransient(err, "WebSocket", "Stream", "upstream dial")
		}

		if !connected {
			handler.OnConnect()
			connected = true
		} else {
			if w.onReconnect != nil {
				w.onReconnect()
			}
			w.logger.Info("reconnected to upstream", "url", w.url)
		}
		w.reportStatus(true)

		stop, err := w.readLoop(ctx, conn, handler)
		_ = conn.Close()
		w.reportStatus(false)

		if stop {
			return nil
		}
		if ctx.Err() != nil {
			return errors.WrapTransient(ctx.Err(), "WebSocket", "Stream", "context check")
		}
		if err != nil {
			w.logger.Warn("upstream connection lost, reconnecting", "error", err)
		}
	}
}

// dial establishes the websocket connection with backoff
func (w *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	return retry.DoWithResult(ctx, w.backoff, func() (*websocket.Conn, error) {
		conn, resp, err := dialer.DialContext(ctx, w.url, nil)
		if err != nil {
			if resp != nil && resp.StatusCode == CodeRateLimited {
				// Provider throttling: backing off harder will not help
				return nil, retry.NonRetryable(errors.ErrRateLimited)
			}
			return nil, err
		}
		return conn, nil
	})
}

// readLoop consumes messages until the connection drops or the handler
// signals Stop. The bool result reports a handler-initiated stop.
func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn, handler Handler) (bool, error) {
	// Unblock the blocking read when the context is cancelled
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsReadDeadline)); err != nil {
			return false, err
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if stderrors.As(err, &closeErr) {
				code := closeCodeToProvider(closeErr.Code)
				if handler.OnError(code) == Stop {
					return true, nil
				}
				return false, err
			}
			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				return false, errors.ErrConnectionTimeout
			}
			return false, err
		}

		if len(message) == 0 || !w.filter.Match(message) {
			continue
		}

		event := Event{Data: message, Received: time.Now()}
		if handler.OnEvent(event) == Stop {
			return true, nil
		}
	}
}

// closeCodeToProvider maps websocket close codes onto provider status
// codes. Application-defined codes in the 4000 range carry the provider
// status directly (4420 means rate limited).
func closeCodeToProvider(code int) int {
	if code >= 4000 && code < 5000 {
		return code - 4000
	}
	if code == websocket.ClosePolicyViolation {
		return CodeRateLimited
	}
	return code
}
