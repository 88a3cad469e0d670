package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/testutil"
)

func newStream(owner, title, category string, live bool) *domain.Stream {
	return &domain.Stream{
		ID:            uuid.NewString(),
		WalletAddress: owner,
		Title:         title,
		Category:      category,
		IsLive:        live,
		StreamKey:     uuid.NewString(),
	}
}

func TestStreamEndIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewGormStreamRepository(testutil.NewDB(t))

	s := newStream("0xabc", "hello", "Gaming", true)
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := repo.End(ctx, s.ID, time.Now())
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !changed {
		t.Fatalf("expected first end to change the row")
	}

	changed, err = repo.End(ctx, s.ID, time.Now())
	if err != nil {
		t.Fatalf("end again: %v", err)
	}
	if changed {
		t.Fatalf("expected second end to be a no-op")
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsLive || got.EndedAt == nil {
		t.Fatalf("expected ended row, got %+v", got)
	}

	if _, err := repo.End(ctx, uuid.NewString(), time.Now()); !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStreamListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewGormStreamRepository(testutil.NewDB(t))

	fixtures := []*domain.Stream{
		newStream("0x1", "Speedrun night", "Gaming", true),
		newStream("0x2", "Building a DEX", "Development", true),
		newStream("0x1", "Old gaming stream", "Gaming", false),
	}
	for _, s := range fixtures {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	live := true
	streams, total, err := repo.List(ctx, StreamFilter{Live: &live})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(streams) != 2 {
		t.Fatalf("expected 2 live streams, got %d", total)
	}

	_, total, err = repo.List(ctx, StreamFilter{Category: "Gaming"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 gaming streams, got %d", total)
	}

	streams, total, err = repo.List(ctx, StreamFilter{Live: &live, Query: "DEX"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || streams[0].ID != fixtures[1].ID {
		t.Fatalf("unexpected search result %+v", streams)
	}

	streams, _, err = repo.List(ctx, StreamFilter{Owner: "0x1", PageSize: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(streams) != 1 {
		t.Fatalf("expected page of 1, got %d", len(streams))
	}
}

func TestStreamUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewGormStreamRepository(testutil.NewDB(t))

	s := newStream("0xabc", "hello", "Art", true)
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdateViewerCount(ctx, s.ID, 12); err != nil {
		t.Fatalf("update viewers: %v", err)
	}
	if err := repo.UpdateThumbnail(ctx, s.ID, "/thumbnails/x.jpg"); err != nil {
		t.Fatalf("update thumbnail: %v", err)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ViewerCount != 12 || got.ThumbnailURL != "/thumbnails/x.jpg" {
		t.Fatalf("unexpected row %+v", got)
	}

	if err := repo.UpdateViewerCount(ctx, uuid.NewString(), 1); !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChatListOrdersByCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewGormChatRepository(testutil.NewDB(t))

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	// Inserted out of order on purpose.
	inserts := []domain.ChatMessage{
		{ID: "03", StreamID: "s1", WalletAddress: "0x1", Message: "third", CreatedAt: base.Add(3 * time.Second)},
		{ID: "01", StreamID: "s1", WalletAddress: "0x1", Message: "first", CreatedAt: base.Add(1 * time.Second)},
		{ID: "02", StreamID: "s1", WalletAddress: "0x2", Message: "second", CreatedAt: base.Add(2 * time.Second)},
		{ID: "99", StreamID: "s2", WalletAddress: "0x2", Message: "other stream", CreatedAt: base},
	}
	for i := range inserts {
		if err := repo.Create(ctx, &inserts[i]); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := repo.ListByStream(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i, m := range got {
		if m.Message != want[i] {
			t.Fatalf("position %d: got %q want %q", i, m.Message, want[i])
		}
	}
}
