package cache

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// StreamCache is a read-through cache of streams rows keyed by id.
type StreamCache interface {
	Get(ctx context.Context, id string) (*domain.Stream, error)
	// Set stores the row unconditionally; used after a write.
	Set(ctx context.Context, stream *domain.Stream, ttl time.Duration) error
	// Add stores the row only if no entry exists; used after a read miss so
	// a concurrent write is never overwritten by an older snapshot.
	Add(ctx context.Context, stream *domain.Stream, ttl time.Duration) error
	Delete(ctx context.Context, ids ...string) error
	Close() error
}

// Noop is the StreamCache used when caching is disabled.
type Noop struct{}

func (Noop) Get(context.Context, string) (*domain.Stream, error)      { return nil, ErrCacheMiss }
func (Noop) Set(context.Context, *domain.Stream, time.Duration) error { return nil }
func (Noop) Add(context.Context, *domain.Stream, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error                  { return nil }
func (Noop) Close() error                                             { return nil }
