package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

var (
	ErrStreamNotFound = errors.New("stream not found")
)

// StreamFilter narrows a directory listing. Zero values match everything.
type StreamFilter struct {
	Live     *bool
	Category string
	Query    string
	Owner    string
	Page     int
	PageSize int
}

// StreamRepository defines the interface for streams table persistence.
type StreamRepository interface {
	Create(ctx context.Context, stream *domain.Stream) error
	GetByID(ctx context.Context, id string) (*domain.Stream, error)
	List(ctx context.Context, filter StreamFilter) ([]domain.Stream, int, error)
	// End flips is_live to false if it is still true and reports whether a row changed.
	End(ctx context.Context, id string, endedAt time.Time) (bool, error)
	UpdateViewerCount(ctx context.Context, id string, count int) error
	UpdateThumbnail(ctx context.Context, id, url string) error
}

// ChatRepository defines the interface for the append-only stream_chat table.
type ChatRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	// ListByStream returns every message of a stream ordered by created_at, then id.
	ListByStream(ctx context.Context, streamID string) ([]domain.ChatMessage, error)
	Close() error
}
