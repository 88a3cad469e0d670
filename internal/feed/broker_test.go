package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/pubsub"
)

func newTestBroker(t *testing.T, buffer int) *Broker {
	t.Helper()
	b := NewBroker(pubsub.NewMemoryPubSub(), []string{domain.TableStreams, domain.TableStreamChat}, buffer)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func receive(t *testing.T, sub Subscription) *domain.Change {
	t.Helper()
	select {
	case c, ok := <-sub.Changes():
		if !ok {
			t.Fatalf("subscription ended: %v", sub.Err())
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for change")
	}
	return nil
}

func waitClosed(t *testing.T, sub Subscription) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Changes():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for subscription to end")
		}
	}
}

func TestBrokerDeliversMatchingChanges(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t, 0)

	s1, err := b.Subscribe(Spec{Table: domain.TableStreamChat, Event: domain.ChangeInsert, Filter: Eq("stream_id", "s1")})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s1.Close()

	other := mustChange(t, domain.TableStreamChat, domain.ChangeInsert, domain.ChatMessage{ID: "m0", StreamID: "s2"})
	mine := mustChange(t, domain.TableStreamChat, domain.ChangeInsert, domain.ChatMessage{ID: "m1", StreamID: "s1"})

	if err := b.Publish(ctx, "s2", other); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.Publish(ctx, "s1", mine); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := receive(t, s1)
	msg, err := got.ChatMessage()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.ID != "m1" {
		t.Fatalf("expected m1, got %s", msg.ID)
	}
}

func TestBrokerCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t, 0)

	sub, err := b.Subscribe(Spec{Table: domain.TableStreams})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Idempotent.
	if err := sub.Close(); err != nil {
		t.Fatalf("close again: %v", err)
	}
	if b.Count() != 0 {
		t.Fatalf("expected no subscribers, got %d", b.Count())
	}

	if err := b.Publish(ctx, "s1", mustChange(t, domain.TableStreams, domain.ChangeUpdate, domain.Stream{ID: "s1"})); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, ok := <-sub.Changes(); ok {
		t.Fatalf("expected closed channel")
	}
	if sub.Err() != nil {
		t.Fatalf("expected nil error after Close, got %v", sub.Err())
	}
}

func TestBrokerDropsLaggingSubscriber(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t, 1)

	sub, err := b.Subscribe(Spec{Table: domain.TableStreams})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := b.Publish(ctx, "s1", mustChange(t, domain.TableStreams, domain.ChangeUpdate, domain.Stream{ID: "s1", ViewerCount: i})); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	waitClosed(t, sub)
	if !errors.Is(sub.Err(), ErrLagged) {
		t.Fatalf("expected ErrLagged, got %v", sub.Err())
	}
}

func TestBrokerCloseEndsSubscriptions(t *testing.T) {
	b := NewBroker(pubsub.NewMemoryPubSub(), []string{domain.TableStreams}, 0)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	sub, err := b.Subscribe(Spec{Table: domain.TableStreams})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	b.Close()
	waitClosed(t, sub)
	if !errors.Is(sub.Err(), ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", sub.Err())
	}
	if _, err := b.Subscribe(Spec{Table: domain.TableStreams}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on subscribe after close, got %v", err)
	}
}

func TestBrokerEndsSubscriptionsWhenTransportStops(t *testing.T) {
	ps := pubsub.NewMemoryPubSub()
	b := NewBroker(ps, []string{domain.TableStreams, domain.TableStreamChat}, 0)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Close()

	chat, err := b.Subscribe(Spec{Table: domain.TableStreamChat})
	if err != nil {
		t.Fatalf("subscribe chat: %v", err)
	}
	streams, err := b.Subscribe(Spec{Table: domain.TableStreams})
	if err != nil {
		t.Fatalf("subscribe streams: %v", err)
	}
	defer streams.Close()

	if err := ps.Unsubscribe(context.Background(), pubsub.RealtimePattern(domain.TableStreamChat)); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	waitClosed(t, chat)
	if !errors.Is(chat.Err(), ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", chat.Err())
	}
	if b.Count() != 1 {
		t.Fatalf("expected streams subscriber to survive, got %d subscribers", b.Count())
	}
}
