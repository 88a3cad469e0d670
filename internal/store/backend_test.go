package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/cache"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/repository"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/testutil"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/pubsub"
)

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()

	db := testutil.NewDB(t)
	broker := feed.NewBroker(pubsub.NewMemoryPubSub(), []string{domain.TableStreams, domain.TableStreamChat}, 0)
	if err := broker.Start(context.Background()); err != nil {
		t.Fatalf("start broker: %v", err)
	}
	t.Cleanup(func() { broker.Close() })

	return NewBackend(
		repository.NewGormStreamRepository(db),
		repository.NewGormChatRepository(db),
		broker,
		broker,
		opts...,
	)
}

func nextChange(t *testing.T, sub feed.Subscription) *domain.Change {
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

func expectNoChange(t *testing.T, sub feed.Subscription) {
	t.Helper()
	select {
	case c := <-sub.Changes():
		t.Fatalf("unexpected change %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBackendStreamLifecycle(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	sub, err := b.Subscribe(ctx, feed.Spec{Table: domain.TableStreams, Event: domain.ChangeAll})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	row, err := b.InsertStream(ctx, &domain.Stream{WalletAddress: "0xabc", Title: "hello", IsLive: true})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if row.ID == "" || row.StreamKey == "" {
		t.Fatalf("expected assigned id and key, got %+v", row)
	}

	inserted := nextChange(t, sub)
	if inserted.Type != domain.ChangeInsert {
		t.Fatalf("expected INSERT, got %s", inserted.Type)
	}
	snapshot, err := inserted.Stream()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.StreamKey != "" {
		t.Fatalf("stream key leaked into the feed")
	}

	ended, changed, err := b.EndStream(ctx, row.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !changed || ended.IsLive {
		t.Fatalf("expected ended row, got changed=%v %+v", changed, ended)
	}
	if update := nextChange(t, sub); update.Type != domain.ChangeUpdate {
		t.Fatalf("expected UPDATE, got %s", update.Type)
	}

	again, changed, err := b.EndStream(ctx, row.ID)
	if err != nil {
		t.Fatalf("end again: %v", err)
	}
	if changed || again.IsLive {
		t.Fatalf("second end must be a no-op")
	}
	expectNoChange(t, sub)

	if _, _, err := b.EndStream(ctx, "missing"); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBackendGetStreamUsesCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := cache.NewRedisStreamCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "streams")
	defer c.Close()

	b := newTestBackend(t, WithCache(c, time.Minute))

	row, err := b.InsertStream(ctx, &domain.Stream{WalletAddress: "0xabc", Title: "cached", IsLive: true})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := b.GetStream(ctx, row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "cached" || got.StreamKey != "" {
		t.Fatalf("unexpected row %+v", got)
	}
	if !mr.Exists("streams:id:" + row.ID) {
		t.Fatalf("expected cache entry")
	}

	if _, _, err := b.EndStream(ctx, row.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	got, err = b.GetStream(ctx, row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsLive {
		t.Fatalf("cache served a stale live row")
	}

	if _, err := b.GetStream(ctx, "missing"); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBackendChat(t *testing.T) {
	ctx := context.Background()

	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	b := newTestBackend(t, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	sub, err := b.Subscribe(ctx, feed.Spec{Table: domain.TableStreamChat, Event: domain.ChangeInsert, Filter: feed.Eq("stream_id", "s1")})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	for _, text := range []string{"one", "two", "three"} {
		if _, err := b.InsertChat(ctx, &domain.ChatMessage{StreamID: "s1", WalletAddress: "0x1", Message: text}); err != nil {
			t.Fatalf("insert chat: %v", err)
		}
	}
	if _, err := b.InsertChat(ctx, &domain.ChatMessage{StreamID: "s2", WalletAddress: "0x1", Message: "elsewhere"}); err != nil {
		t.Fatalf("insert chat: %v", err)
	}

	for _, want := range []string{"one", "two", "three"} {
		msg, err := nextChange(t, sub).ChatMessage()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Message != want {
			t.Fatalf("got %q want %q", msg.Message, want)
		}
	}
	expectNoChange(t, sub)

	messages, err := b.ListChat(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i := 1; i < len(messages); i++ {
		if !messages[i-1].Before(&messages[i]) {
			t.Fatalf("transcript out of order at %d", i)
		}
	}

	empty, err := b.ListChat(ctx, "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil transcript")
	}
}

func TestBackendViewerCount(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	row, err := b.InsertStream(ctx, &domain.Stream{WalletAddress: "0xabc", Title: "hello", IsLive: true})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := b.UpdateViewerCount(ctx, row.ID, -1); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, err := b.UpdateViewerCount(ctx, row.ID, 42)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.ViewerCount != 42 {
		t.Fatalf("expected 42 viewers, got %d", got.ViewerCount)
	}
}
