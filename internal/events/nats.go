package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// JetStreamPublisher publishes login events to the user-login stream.
type JetStreamPublisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewJetStreamPublisher connects to NATS, ensures the user-login stream
// exists, and returns a publisher. The connection reconnects indefinitely
// once established; initial connection failures are returned to the caller,
// which is expected to retry through the backoff connector.
func NewJetStreamPublisher(url string) (*JetStreamPublisher, error) {
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

	if err := EnsureStream(js); err != nil {
		nc.Close()
		return nil, err
	}

	return &JetStreamPublisher{conn: nc, js: js}, nil
}

// EnsureStream creates the user-login stream if it does not exist yet.
// Both the publisher and the auditor call this, so whichever process comes
// up first creates it; a concurrent create by the other process is fine.
func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("looking up stream %s: %w", StreamName, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{Topic + ".>"},
		Storage:  nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("creating stream %s: %w", StreamName, err)
	}
	return nil
}

// Publish serializes the event and sends it to the user's subject. The
// publish is synchronous: the broker has accepted the message into the
// stream when this returns nil.
func (p *JetStreamPublisher) Publish(ctx context.Context, event LoginEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling login event: %w", err)
	}
	if _, err := p.js.Publish(Subject(event.UserID), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publishing to %s: %w", Subject(event.UserID), err)
	}
	return nil
}

// Connected reports whether the underlying NATS connection is up.
func (p *JetStreamPublisher) Connected() bool {
	return p.conn.IsConnected()
}

func (p *JetStreamPublisher) Close() error {
	p.conn.Close()
	return nil
}
