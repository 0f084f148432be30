package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	events []LoginEvent
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(ctx context.Context, event LoginEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

func TestSwappablePublisher_UnavailableBeforeSwap(t *testing.T) {
	s := NewSwappablePublisher()

	err := s.Publish(context.Background(), LoginEvent{UserID: 1})
	if !errors.Is(err, ErrPublisherUnavailable) {
		t.Fatalf("got error %v, want ErrPublisherUnavailable", err)
	}
	if s.Connected() {
		t.Error("Connected() should be false before a publisher is installed")
	}
}

func TestSwappablePublisher_DelegatesAfterSwap(t *testing.T) {
	s := NewSwappablePublisher()
	rec := &recordingPublisher{}
	s.Swap(rec)

	if !s.Connected() {
		t.Error("Connected() should be true after swap")
	}
	if err := s.Publish(context.Background(), LoginEvent{UserID: 9}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if len(rec.events) != 1 || rec.events[0].UserID != 9 {
		t.Errorf("inner publisher got %v, want one event with UserID 9", rec.events)
	}
}

func TestSwappablePublisher_PropagatesPublishError(t *testing.T) {
	s := NewSwappablePublisher()
	sentinel := errors.New("broker down")
	s.Swap(&recordingPublisher{err: sentinel})

	if err := s.Publish(context.Background(), LoginEvent{}); !errors.Is(err, sentinel) {
		t.Errorf("got error %v, want %v", err, sentinel)
	}
}

func TestSwappablePublisher_Close(t *testing.T) {
	s := NewSwappablePublisher()
	rec := &recordingPublisher{}
	s.Swap(rec)

	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if !rec.closed {
		t.Error("inner publisher should have been closed")
	}
	// After close the publisher is unavailable again.
	if err := s.Publish(context.Background(), LoginEvent{}); !errors.Is(err, ErrPublisherUnavailable) {
		t.Errorf("got error %v, want ErrPublisherUnavailable after Close", err)
	}
}

func TestSwappablePublisher_ConnectBackground(t *testing.T) {
	url := startTestNATS(t)

	s := NewSwappablePublisher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.ConnectBackground(ctx, nil, url, 10*time.Millisecond)

	deadline := time.Now().Add(5 * time.Second)
	for !s.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("publisher did not connect in time")
		}
		time.Sleep(20 * time.Millisecond)
	}
	defer s.Close()

	if err := s.Publish(context.Background(), LoginEvent{UserID: 5, Username: "admin", Action: ActionLogin, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Publish after background connect: %v", err)
	}
}
