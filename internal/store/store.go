// Package store is the persistent store and change feed the core depends on.
package store

import (
	"context"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
)

// Store is the tabular store with row-level change subscriptions.
// Backend implements it over the database; remote.Client over the HTTP API.
type Store interface {
	// InsertStream stores a new streams row and returns it with id,
	// stream key and created_at assigned.
	InsertStream(ctx context.Context, stream *domain.Stream) (*domain.Stream, error)
	GetStream(ctx context.Context, id string) (*domain.Stream, error)
	// EndStream sets is_live=false if the stream is live. changed is false
	// when the stream had already ended.
	EndStream(ctx context.Context, id string) (stream *domain.Stream, changed bool, err error)

	// InsertChat appends a stream_chat row and returns it with id and created_at assigned.
	InsertChat(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error)
	// ListChat returns a stream's messages ordered by created_at ascending.
	ListChat(ctx context.Context, streamID string) ([]domain.ChatMessage, error)

	// Subscribe registers for changes selected by spec. Changes after
	// Subscribe returns are delivered.
	Subscribe(ctx context.Context, spec feed.Spec) (feed.Subscription, error)
}
