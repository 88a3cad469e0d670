package chatsync

import (
	"context"
	"sort"
	"sync"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

// Transcript is a local, ordered copy of one stream's chat. It is filled
// by the initial load and by the insert feed, merged by message id.
type Transcript struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	ids      map[string]struct{}
	closed   bool
	changed  chan struct{}

	sub *Subscription
}

// OpenTranscript subscribes to the stream's chat, then loads the existing
// messages. Subscribing first means no message committed in between is lost.
func OpenTranscript(ctx context.Context, s *Synchronizer, streamID string) (*Transcript, error) {
	t := &Transcript{
		ids:     make(map[string]struct{}),
		changed: make(chan struct{}, 1),
	}

	sub, err := s.Subscribe(ctx, streamID, func(msg domain.ChatMessage) {
		t.merge(msg)
	})
	if err != nil {
		return nil, err
	}
	t.sub = sub

	messages, err := s.LoadTranscript(ctx, streamID)
	if err != nil {
		sub.Close()
		return nil, err
	}
	t.merge(messages...)
	return t, nil
}

// merge adds unseen messages at their sorted position.
func (t *Transcript) merge(messages ...domain.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	added := false
	for _, msg := range messages {
		if _, ok := t.ids[msg.ID]; ok {
			continue
		}
		t.ids[msg.ID] = struct{}{}

		m := msg
		i := sort.Search(len(t.messages), func(i int) bool {
			return m.Before(&t.messages[i])
		})
		t.messages = append(t.messages, domain.ChatMessage{})
		copy(t.messages[i+1:], t.messages[i:])
		t.messages[i] = m
		added = true
	}

	if added {
		select {
		case t.changed <- struct{}{}:
		default:
		}
	}
}

// Messages returns a copy of the transcript, oldest first.
func (t *Transcript) Messages() []domain.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Changed receives a signal after messages were added.
func (t *Transcript) Changed() <-chan struct{} {
	return t.changed
}

// Done is closed when the transcript stops following the feed, after Close
// or when the feed ends.
func (t *Transcript) Done() <-chan struct{} {
	return t.sub.Done()
}

// Err reports why the feed ended, such as feed.ErrLagged. A non-nil Err
// means the transcript is stale and should be reopened.
func (t *Transcript) Err() error {
	return t.sub.Err()
}

// Close stops following the feed. Later results are discarded.
func (t *Transcript) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.sub.Close()
}
