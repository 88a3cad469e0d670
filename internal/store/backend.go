package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/cache"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/idgen"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/repository"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
)

// Publisher sends committed changes to the feed.
type Publisher interface {
	Publish(ctx context.Context, key string, change *domain.Change) error
}

// Subscriber registers feed subscribers.
type Subscriber interface {
	Subscribe(spec feed.Spec) (feed.Subscription, error)
}

// Backend is the database-backed Store. Every committed write is published
// to the change feed as a full-row snapshot.
type Backend struct {
	streams  repository.StreamRepository
	chat     repository.ChatRepository
	cache    cache.StreamCache
	cacheTTL time.Duration

	publisher  Publisher
	subscriber Subscriber

	streamIDs  idgen.Generator
	streamKeys idgen.Generator
	chatIDs    *idgen.ULIDGenerator
	now        func() time.Time

	sf singleflight.Group
}

// Option configures a Backend.
type Option func(*Backend)

// WithCache enables the read-through stream cache.
func WithCache(c cache.StreamCache, ttl time.Duration) Option {
	return func(b *Backend) {
		b.cache = c
		b.cacheTTL = ttl
	}
}

// WithStreamKeys sets the stream key generator.
func WithStreamKeys(g idgen.Generator) Option {
	return func(b *Backend) { b.streamKeys = g }
}

// WithClock sets the time source for created_at and ended_at.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// NewBackend creates a Backend over the repositories and the feed broker.
func NewBackend(
	streams repository.StreamRepository,
	chat repository.ChatRepository,
	publisher Publisher,
	subscriber Subscriber,
	opts ...Option,
) *Backend {
	keys, _ := idgen.NewKeyGenerator(idgen.KeyConfig{})
	b := &Backend{
		streams:    streams,
		chat:       chat,
		cache:      cache.Noop{},
		publisher:  publisher,
		subscriber: subscriber,
		streamIDs:  idgen.NewUUIDGenerator(),
		streamKeys: keys,
		chatIDs:    idgen.NewULIDGenerator(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// InsertStream implements Store.
func (b *Backend) InsertStream(ctx context.Context, stream *domain.Stream) (*domain.Stream, error) {
	row := *stream

	id, err := b.streamIDs.Generate()
	if err != nil {
		return nil, domain.NewPersistenceError("insert stream", err)
	}
	key, err := b.streamKeys.Generate()
	if err != nil {
		return nil, domain.NewPersistenceError("insert stream", err)
	}
	row.ID = id
	row.StreamKey = key
	row.CreatedAt = b.now().UTC().Truncate(time.Microsecond)
	row.EndedAt = nil

	if err := b.streams.Create(ctx, &row); err != nil {
		return nil, domain.NewPersistenceError("insert stream", err)
	}

	b.cacheSet(ctx, &row)
	b.publish(ctx, row.ID, domain.TableStreams, domain.ChangeInsert, row.Public())
	return &row, nil
}

// GetStream implements Store. Concurrent misses for the same id share one query.
func (b *Backend) GetStream(ctx context.Context, id string) (*domain.Stream, error) {
	if cached, err := b.cache.Get(ctx, id); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldStreamID, id).Msg("cache get error")
	}

	result, err, _ := b.sf.Do(id, func() (interface{}, error) {
		return b.streams.GetByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStreamNotFound) {
			return nil, domain.ErrStreamNotFound
		}
		return nil, domain.NewPersistenceError("get stream", err)
	}

	stream, ok := result.(*domain.Stream)
	if !ok {
		return nil, domain.NewPersistenceError("get stream", fmt.Errorf("unexpected result type from singleflight"))
	}
	public := stream.Public()

	if err := b.cache.Add(ctx, &public, b.cacheTTL); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldStreamID, id).Msg("cache add error")
	}
	return &public, nil
}

// ListStreams returns a page of the directory.
func (b *Backend) ListStreams(ctx context.Context, filter repository.StreamFilter) ([]domain.Stream, int, error) {
	streams, total, err := b.streams.List(ctx, filter)
	if err != nil {
		return nil, 0, domain.NewPersistenceError("list streams", err)
	}
	for i := range streams {
		streams[i] = streams[i].Public()
	}
	return streams, total, nil
}

// EndStream implements Store. Only the call that flips is_live publishes a change.
func (b *Backend) EndStream(ctx context.Context, id string) (*domain.Stream, bool, error) {
	changed, err := b.streams.End(ctx, id, b.now())
	if err != nil {
		if errors.Is(err, repository.ErrStreamNotFound) {
			return nil, false, domain.ErrStreamNotFound
		}
		return nil, false, domain.NewPersistenceError("end stream", err)
	}

	stream, err := b.reload(ctx, id, "end stream")
	if err != nil {
		return nil, false, err
	}

	if changed {
		b.publish(ctx, id, domain.TableStreams, domain.ChangeUpdate, stream)
	}
	return stream, changed, nil
}

// UpdateViewerCount sets the externally maintained viewer count.
func (b *Backend) UpdateViewerCount(ctx context.Context, id string, count int) (*domain.Stream, error) {
	if count < 0 {
		return nil, domain.NewValidationError("viewer_count", "must not be negative")
	}
	if err := b.streams.UpdateViewerCount(ctx, id, count); err != nil {
		if errors.Is(err, repository.ErrStreamNotFound) {
			return nil, domain.ErrStreamNotFound
		}
		return nil, domain.NewPersistenceError("update viewer count", err)
	}
	return b.reloadAndPublish(ctx, id, "update viewer count")
}

// UpdateThumbnail sets the thumbnail URL.
func (b *Backend) UpdateThumbnail(ctx context.Context, id, url string) (*domain.Stream, error) {
	if err := b.streams.UpdateThumbnail(ctx, id, url); err != nil {
		if errors.Is(err, repository.ErrStreamNotFound) {
			return nil, domain.ErrStreamNotFound
		}
		return nil, domain.NewPersistenceError("update thumbnail", err)
	}
	return b.reloadAndPublish(ctx, id, "update thumbnail")
}

func (b *Backend) reloadAndPublish(ctx context.Context, id, op string) (*domain.Stream, error) {
	stream, err := b.reload(ctx, id, op)
	if err != nil {
		return nil, err
	}
	b.publish(ctx, id, domain.TableStreams, domain.ChangeUpdate, stream)
	return stream, nil
}

// reload reads the row from the database and refreshes the cache.
func (b *Backend) reload(ctx context.Context, id, op string) (*domain.Stream, error) {
	stream, err := b.streams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrStreamNotFound) {
			return nil, domain.ErrStreamNotFound
		}
		return nil, domain.NewPersistenceError(op, err)
	}
	public := stream.Public()
	b.cacheSet(ctx, &public)
	return &public, nil
}

// InsertChat implements Store.
func (b *Backend) InsertChat(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	// Millisecond precision matches the ULID timestamp and every driver.
	now := b.now().UTC().Truncate(time.Millisecond)
	id, err := b.chatIDs.GenerateAt(now)
	if err != nil {
		return nil, domain.NewPersistenceError("insert chat", err)
	}

	row := *msg
	row.ID = id
	row.CreatedAt = now

	if err := b.chat.Create(ctx, &row); err != nil {
		return nil, domain.NewPersistenceError("insert chat", err)
	}

	b.publish(ctx, row.StreamID, domain.TableStreamChat, domain.ChangeInsert, row)
	return &row, nil
}

// ListChat implements Store.
func (b *Backend) ListChat(ctx context.Context, streamID string) ([]domain.ChatMessage, error) {
	messages, err := b.chat.ListByStream(ctx, streamID)
	if err != nil {
		return nil, domain.NewPersistenceError("list chat", err)
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}

// Subscribe implements Store.
func (b *Backend) Subscribe(ctx context.Context, spec feed.Spec) (feed.Subscription, error) {
	sub, err := b.subscriber.Subscribe(spec)
	if err != nil {
		if errors.Is(err, feed.ErrClosed) {
			return nil, domain.NewPersistenceError("subscribe", err)
		}
		return nil, domain.NewValidationError("subscription", err.Error())
	}
	return sub, nil
}

func (b *Backend) cacheSet(ctx context.Context, stream *domain.Stream) {
	if err := b.cache.Set(ctx, stream, b.cacheTTL); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldStreamID, stream.ID).Msg("cache set error")
	}
}

// publish reports feed failures in the log only; the write is already committed.
func (b *Backend) publish(ctx context.Context, key, table string, typ domain.ChangeType, record interface{}) {
	change, err := domain.NewChange(table, typ, record)
	if err == nil {
		err = b.publisher.Publish(ctx, key, change)
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldTable, table).Str("key", key).Msg("failed to publish change")
	}
}
