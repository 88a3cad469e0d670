// Package chatsync keeps chat transcripts and session rows in sync with the
// change feed.
package chatsync

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/audit"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/identity"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/store"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
)

// Synchronizer reads, sends and follows the chat of a stream.
type Synchronizer struct {
	store     store.Store
	identity  identity.Provider
	maxLength int
}

// NewSynchronizer creates a Synchronizer. maxLength limits messages in
// characters; zero means no limit.
func NewSynchronizer(s store.Store, p identity.Provider, maxLength int) *Synchronizer {
	return &Synchronizer{store: s, identity: p, maxLength: maxLength}
}

// LoadTranscript returns every message of the stream, oldest first.
func (s *Synchronizer) LoadTranscript(ctx context.Context, streamID string) ([]domain.ChatMessage, error) {
	messages, err := s.store.ListChat(ctx, streamID)
	if err != nil {
		return nil, asPersistence("load transcript", err)
	}
	return messages, nil
}

// SendMessage inserts one message authored by the connected wallet.
// The message is not added to any local transcript; it arrives through the feed.
func (s *Synchronizer) SendMessage(ctx context.Context, streamID, text string) (*domain.ChatMessage, error) {
	wallet, ok := identity.Require(s.identity)
	if !ok {
		return nil, domain.NotConnectedError()
	}
	message, err := domain.NormalizeMessage(text)
	if err != nil {
		return nil, err
	}
	if s.maxLength > 0 && utf8.RuneCountInString(message) > s.maxLength {
		return nil, domain.NewValidationError("message", fmt.Sprintf("must be at most %d characters", s.maxLength))
	}

	created, err := s.store.InsertChat(ctx, &domain.ChatMessage{
		StreamID:      streamID,
		WalletAddress: wallet,
		Message:       message,
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to send message")
		return nil, asPersistence("send message", err)
	}

	audit.LogWithDetail(ctx, audit.ActionSendChat, wallet, streamID, created.ID, "chat message sent")
	return created, nil
}

// Subscribe calls onInsert once for every new message of the stream, in
// feed order. Redelivered rows are suppressed by id.
func (s *Synchronizer) Subscribe(ctx context.Context, streamID string, onInsert func(domain.ChatMessage)) (*Subscription, error) {
	spec := feed.Spec{
		Table:  domain.TableStreamChat,
		Event:  domain.ChangeInsert,
		Filter: feed.Eq("stream_id", streamID),
	}

	// Only the delivery goroutine touches seen.
	seen := make(map[string]struct{})
	return s.subscribe(ctx, spec, func(change *domain.Change) {
		msg, err := change.ChatMessage()
		if err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("invalid chat change")
			return
		}
		if _, dup := seen[msg.ID]; dup {
			return
		}
		seen[msg.ID] = struct{}{}
		onInsert(*msg)
	})
}

// WatchSession calls onUpdate with every new snapshot of the stream row.
func (s *Synchronizer) WatchSession(ctx context.Context, streamID string, onUpdate func(domain.Stream)) (*Subscription, error) {
	spec := feed.Spec{
		Table:  domain.TableStreams,
		Event:  domain.ChangeAll,
		Filter: feed.Eq("id", streamID),
	}
	return s.subscribe(ctx, spec, func(change *domain.Change) {
		stream, err := change.Stream()
		if err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("invalid stream change")
			return
		}
		onUpdate(*stream)
	})
}

// Unsubscribe closes sub. A nil sub is ignored.
func (s *Synchronizer) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Close()
}

func (s *Synchronizer) subscribe(ctx context.Context, spec feed.Spec, deliver func(*domain.Change)) (*Subscription, error) {
	inner, err := s.store.Subscribe(ctx, spec)
	if err != nil {
		return nil, asPersistence("subscribe", err)
	}
	return newSubscription(ctx, inner, deliver), nil
}

func asPersistence(op string, err error) error {
	if domain.IsPersistence(err) || domain.IsValidation(err) || errors.Is(err, domain.ErrStreamNotFound) {
		return err
	}
	return domain.NewPersistenceError(op, err)
}
