package chatsync

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

// SessionView is a local copy of one streams row. Feed snapshots replace it
// whole; the latest one wins.
type SessionView struct {
	mu      sync.Mutex
	stream  domain.Stream
	fed     bool
	closed  bool
	changed chan struct{}

	sub *Subscription
}

// OpenSessionView watches the row, then fetches it. The fetched row is
// dropped if a feed snapshot already arrived.
func OpenSessionView(ctx context.Context, s *Synchronizer, streamID string) (*SessionView, error) {
	v := &SessionView{changed: make(chan struct{}, 1)}

	sub, err := s.WatchSession(ctx, streamID, func(stream domain.Stream) {
		v.apply(stream, true)
	})
	if err != nil {
		return nil, err
	}
	v.sub = sub

	stream, err := s.store.GetStream(ctx, streamID)
	if err != nil {
		sub.Close()
		return nil, asPersistence("get stream", err)
	}
	v.apply(*stream, false)
	return v, nil
}

func (v *SessionView) apply(stream domain.Stream, fromFeed bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || (!fromFeed && v.fed) {
		return
	}
	v.stream = stream
	v.fed = v.fed || fromFeed

	select {
	case v.changed <- struct{}{}:
	default:
	}
}

// Stream returns the current snapshot.
func (v *SessionView) Stream() domain.Stream {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stream
}

// Changed receives a signal after the snapshot was replaced.
func (v *SessionView) Changed() <-chan struct{} {
	return v.changed
}

// Done is closed when the snapshot stops following the feed, after Close
// or when the feed ends.
func (v *SessionView) Done() <-chan struct{} {
	return v.sub.Done()
}

// Err reports why the feed ended, such as feed.ErrLagged. A non-nil Err
// means the snapshot is stale and should be reopened.
func (v *SessionView) Err() error {
	return v.sub.Err()
}

// Close stops following the feed.
func (v *SessionView) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return v.sub.Close()
}
