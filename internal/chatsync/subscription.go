package chatsync

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
)

// Subscription delivers feed changes to a callback on its own goroutine.
type Subscription struct {
	inner  feed.Subscription
	closed atomic.Bool
	// mu is held while a callback runs so Close can wait it out.
	mu   sync.Mutex
	done chan struct{}
}

func newSubscription(ctx context.Context, inner feed.Subscription, deliver func(*domain.Change)) *Subscription {
	sub := &Subscription{inner: inner, done: make(chan struct{})}
	go sub.run(ctx, deliver)
	return sub
}

func (s *Subscription) run(ctx context.Context, deliver func(*domain.Change)) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case change, ok := <-s.inner.Changes():
			if !ok {
				return
			}
			s.mu.Lock()
			if !s.closed.Load() {
				deliver(change)
			}
			s.mu.Unlock()
		}
	}
}

// Close ends the subscription. No callback runs after Close returns.
// Close is idempotent and must not be called from the callback itself.
func (s *Subscription) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.inner.Close()
	s.mu.Lock()
	s.mu.Unlock()
	return err
}

// Done is closed when delivery stops, after Close or when the feed ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the feed ended, such as feed.ErrLagged. It is nil
// while the subscription is running and after Close.
func (s *Subscription) Err() error {
	return s.inner.Err()
}
