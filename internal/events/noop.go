package events

import "context"

// NoopPublisher is a Publisher that does nothing (used when no broker is
// configured, e.g. in tests).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, event LoginEvent) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
