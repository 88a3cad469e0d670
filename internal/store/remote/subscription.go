package remote

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
)

// subscription reads changes from a realtime connection.
type subscription struct {
	conn    *websocket.Conn
	changes chan *domain.Change

	closed    atomic.Bool
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func newSubscription(conn *websocket.Conn, buffer int) *subscription {
	s := &subscription{
		conn:    conn,
		changes: make(chan *domain.Change, buffer),
	}
	go s.readLoop()
	return s
}

func (s *subscription) readLoop() {
	defer close(s.changes)

	for {
		var change domain.Change
		if err := s.conn.ReadJSON(&change); err != nil {
			if !s.closed.Load() {
				s.setErr(feedError(err))
			}
			return
		}
		select {
		case s.changes <- &change:
		default:
			// Mirror the server: a consumer that cannot keep up is dropped.
			s.setErr(feed.ErrLagged)
			s.Close()
			return
		}
	}
}

// feedError maps the server's close frame to the feed errors.
func feedError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseTryAgainLater:
			return feed.ErrLagged
		case websocket.CloseGoingAway:
			return feed.ErrClosed
		case websocket.CloseNormalClosure:
			return nil
		}
	}
	l := log.L()
	l.Warn().Err(err).Msg("realtime connection lost")
	return domain.NewPersistenceError("subscription", err)
}

func (s *subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *subscription) Changes() <-chan *domain.Change {
	return s.changes
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close sends a close frame and drops the connection. The read loop then
// closes Changes.
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
