package feed

import (
	"errors"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

var (
	// ErrLagged ends a subscription whose consumer fell behind the feed.
	ErrLagged = errors.New("feed: subscriber lagged behind")
	// ErrClosed ends every subscription when the broker shuts down.
	ErrClosed = errors.New("feed: closed")
)

// Subscription is a live registration on the change feed.
// Changes is closed when the subscription ends; Err then reports why
// (nil after Close).
type Subscription interface {
	Changes() <-chan *domain.Change
	Err() error
	Close() error
}
