package source

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
	"github.com/Zeppelin-and-Pails/Victualiser/pkg/retry"
)

// natsErrorHeader carries a provider status code on control messages.
// A message with this header set is delivered to OnError instead of OnEvent.
const natsErrorHeader = "Victualiser-Error-Code"

// NATS streams events from a NATS subject subscription
type NATS struct {
	url     string
	subject string
	filter  Filter
	logger  *slog.Logger

	onStatus func(bool) // optional connection-status hook
}

// NewNATS creates a NATS source for the given server URL and subject
func NewNATS(url, subject string, filter Filter, logger *slog.Logger) *NATS {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{
		url:     url,
		subject: subject,
		filter:  filter,
		logger:  logger.With("source", "nats", "subject", subject),
	}
}

// OnStatus registers a hook invoked on every connection status change
func (n *NATS) OnStatus(fn func(connected bool)) {
	n.onStatus = fn
}

func (n *NATS) reportStatus(connected bool) {
	if n.onStatus != nil {
		n.onStatus(connected)
	}
}

// Stream subscribes to the subject and delivers events until the handler
// signals Stop or the context is cancelled.
func (n *NATS) Stream(ctx context.Context, handler Handler) error {
	conn, err := retry.DoWithResult(ctx, retry.Quick(), func() (*nats.Conn, error) {
		return nats.Connect(n.url,
			nats.Name("victualiser-source"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
	})
	if err != nil {
		return errors.WrapTransient(err, "NATS", "Stream", "server connect")
	}
	defer conn.Close()

	msgCh := make(chan *nats.Msg, 256)
	sub, err := conn.ChanSubscribe(n.subject, msgCh)
	if err != nil {
		return errors.WrapTransient(err, "NATS", "Stream", "subject subscribe")
	}
	defer func() { _ = sub.Unsubscribe() }()

	handler.OnConnect()
	n.reportStatus(true)
	defer n.reportStatus(false)

	for {
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "NATS", "Stream", "context check")
		case msg := <-msgCh:
			if code, ok := errorCode(msg); ok {
				if handler.OnError(code) == Stop {
					return nil
				}
				continue
			}

			if len(msg.Data) == 0 || !n.filter.Match(msg.Data) {
				continue
			}

			event := Event{Data: msg.Data, Received: time.Now()}
			if handler.OnEvent(event) == Stop {
				return nil
			}
		}
	}
}

// errorCode extracts a provider status code from a control message
func errorCode(msg *nats.Msg) (int, bool) {
	if msg.Header == nil {
		return 0, false
	}
	value := msg.Header.Get(natsErrorHeader)
	if value == "" {
		return 0, false
	}
	code, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return code, true
}
