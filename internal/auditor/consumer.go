package auditor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mjheld/authstream/internal/backoff"
	"github.com/mjheld/authstream/internal/events"
)

// Consumer subscribes to the login event stream with a durable consumer
// and turns each delivered message into an audit entry. Messages are
// dispatched sequentially by a single subscription, so per-user (per
// subject) ordering is preserved.
type Consumer struct {
	logger  *slog.Logger
	metrics *Metrics

	// Policy governs the subscription retry schedule. Defaults to the
	// broker policy; tests shorten it.
	Policy backoff.Policy

	conn *nats.Conn
}

// New creates a consumer. A nil metrics value disables instrumentation.
func New(logger *slog.Logger, metrics *Metrics) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{logger: logger, metrics: metrics, Policy: backoff.BrokerPolicy()}
}

// Run establishes the subscription through the backoff connector and then
// blocks until the context is cancelled. Exhausting the connection
// attempts is fatal: the error wraps backoff.ErrExhausted and the caller
// is expected to exit non-zero.
func (c *Consumer) Run(ctx context.Context, url string) error {
	sub, err := backoff.Connect(ctx, c.logger, "broker subscription", c.Policy, func(ctx context.Context) (*nats.Subscription, error) {
		return c.subscribe(url)
	})
	if err != nil {
		return err
	}

	c.logger.Info("consumer started and subscribed",
		slog.String("topic", events.Topic),
		slog.String("durable", events.ConsumerGroup))

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		c.logger.Warn("draining subscription", slog.String("error", err.Error()))
	}
	c.conn.Close()
	return ctx.Err()
}

// subscribe performs one connection attempt: dial, ensure the stream, and
// create the durable push subscription. Any failure tears the connection
// down so the next attempt starts clean.
func (c *Consumer) subscribe(url string) (*nats.Subscription, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("opening JetStream context: %w", err)
	}

	if err := events.EnsureStream(js); err != nil {
		nc.Close()
		return nil, err
	}

	sub, err := js.Subscribe(events.Topic+".>", c.handle,
		nats.Durable(events.ConsumerGroup),
		nats.DeliverAll(),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", events.Topic, err)
	}

	c.conn = nc
	return sub, nil
}

// handle processes one delivered message. Decode failures are logged,
// counted, and acked so a poison message never wedges the consumer group.
func (c *Consumer) handle(msg *nats.Msg) {
	start := time.Now()

	var offset uint64
	if meta, err := msg.Metadata(); err == nil {
		offset = meta.Sequence.Stream
	}

	var event events.LoginEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logger.Error("error processing message",
			slog.String("subject", msg.Subject),
			slog.Uint64("offset", offset),
			slog.String("error", err.Error()))
		if c.metrics != nil {
			c.metrics.IncMessagesError()
		}
		c.ack(msg)
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Topic:     events.Topic,
		Key:       strings.TrimPrefix(msg.Subject, events.Topic+"."),
		Offset:    offset,
		UserID:    event.UserID,
		Username:  event.Username,
		Action:    event.Action,
		IPAddress: event.IPAddress,
	}

	c.logger.Info("audit",
		slog.Time("timestamp", entry.Timestamp),
		slog.String("topic", entry.Topic),
		slog.String("key", entry.Key),
		slog.Uint64("offset", entry.Offset),
		slog.Int("userId", entry.UserID),
		slog.String("username", entry.Username),
		slog.String("action", entry.Action),
		slog.String("ipAddress", entry.IPAddress))

	if c.metrics != nil {
		c.metrics.IncMessagesProcessed()
		c.metrics.ObserveHandleLatency(time.Since(start).Seconds())
	}
	c.ack(msg)
}

func (c *Consumer) ack(msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		c.logger.Warn("acking message",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()))
	}
}
