// Package events defines the login event stream and its publishers.
// Events are published to a NATS JetStream stream keyed by user ID so that
// all events for one user share a subject and are consumed in order.
package events

import (
	"context"
	"fmt"
	"time"
)

// Topic is the root subject for login events. The JetStream stream of the
// same name captures every subject beneath it.
const Topic = "user-login"

// StreamName is the JetStream stream that stores login events.
const StreamName = "user-login"

// ConsumerGroup is the durable consumer shared by auditor instances.
const ConsumerGroup = "auditor"

// ActionLogin is the action recorded for a successful authentication.
const ActionLogin = "login"

// LoginEvent is the immutable record of one credential use. It is created
// at authentication time and serialized as the message value; the system
// keeps no copy after publication.
type LoginEvent struct {
	UserID    int       `json:"userId"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ipAddress"`
}

// Subject returns the event's subject: the topic suffixed with the user ID
// so per-user ordering is preserved end to end.
func Subject(userID int) string {
	return fmt.Sprintf("%s.%d", Topic, userID)
}

// Publisher is the interface for emitting login events. Publish performs a
// single attempt; there is no internal retry, and failures surface to the
// caller.
type Publisher interface {
	Publish(ctx context.Context, event LoginEvent) error
	Close() error
}
