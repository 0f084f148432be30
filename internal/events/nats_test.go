package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS starts an embedded NATS server with JetStream enabled and
// returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestNoopPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
}

func TestJetStreamPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*JetStreamPublisher)(nil)
}

func TestSubject(t *testing.T) {
	if got := Subject(42); got != "user-login.42" {
		t.Errorf("Subject(42) = %q, want %q", got, "user-login.42")
	}
}

func TestJetStreamPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewJetStreamPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	if !pub.Connected() {
		t.Error("publisher should report connected")
	}

	event := LoginEvent{
		UserID:    7,
		Username:  "admin",
		Action:    ActionLogin,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		IPAddress: "10.0.0.1",
	}
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	// Read the event back from the stream on a separate connection.
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("JetStream context: %v", err)
	}
	sub, err := js.SubscribeSync(Topic+".>", nats.DeliverAll())
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("waiting for message: %v", err)
	}
	if msg.Subject != "user-login.7" {
		t.Errorf("got subject %q, want %q", msg.Subject, "user-login.7")
	}

	var got LoginEvent
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.UserID != 7 || got.Username != "admin" || got.Action != ActionLogin {
		t.Errorf("got event %+v, want userId=7 username=admin action=login", got)
	}
	if got.IPAddress != "10.0.0.1" {
		t.Errorf("got ipAddress %q, want 10.0.0.1", got.IPAddress)
	}
}

func TestJetStreamPublisher_PerUserOrdering(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewJetStreamPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	// Two events for the same user, published in order.
	for i, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		event := LoginEvent{UserID: 3, Username: "admin", Action: ActionLogin, Timestamp: time.Now().UTC(), IPAddress: ip}
		if err := pub.Publish(context.Background(), event); err != nil {
			t.Fatalf("Publish #%d: %v", i+1, err)
		}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("JetStream context: %v", err)
	}
	sub, err := js.SubscribeSync(Subject(3), nats.DeliverAll())
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck

	for i, wantIP := range []string{"10.0.0.1", "10.0.0.2"} {
		msg, err := sub.NextMsg(2 * time.Second)
		if err != nil {
			t.Fatalf("waiting for message %d: %v", i+1, err)
		}
		var got LoginEvent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal message %d: %v", i+1, err)
		}
		if got.IPAddress != wantIP {
			t.Errorf("message %d delivered out of order: got ip %q, want %q", i+1, got.IPAddress, wantIP)
		}
	}
}

func TestEnsureStream_Idempotent(t *testing.T) {
	url := startTestNATS(t)

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("JetStream context: %v", err)
	}

	if err := EnsureStream(js); err != nil {
		t.Fatalf("first EnsureStream: %v", err)
	}
	if err := EnsureStream(js); err != nil {
		t.Fatalf("second EnsureStream should be a no-op: %v", err)
	}
}

func TestNewJetStreamPublisher_ConnectionRefused(t *testing.T) {
	// Nothing listening on this port.
	_, err := NewJetStreamPublisher("nats://127.0.0.1:1")
	if err == nil {
		t.Fatal("expected connection error")
	}
}
