// Package feed fans row changes out to subscribers. Changes travel between
// instances over pkg/pubsub on realtime:{table}:{key} channels; each
// instance's Broker delivers them to its local subscribers.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/pubsub"
)

const DefaultBuffer = 256

// Broker publishes changes and delivers them to matching subscribers.
type Broker struct {
	ps     pubsub.PubSub
	tables []string
	buffer int

	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBroker creates a broker for tables over ps.
func NewBroker(ps pubsub.PubSub, tables []string, buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		ps:     ps,
		tables: tables,
		buffer: buffer,
		subs:   make(map[string]*subscription),
	}
}

// Start subscribes to every table's channel pattern and begins dispatching.
// Subscriptions are active when Start returns.
func (b *Broker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	for _, table := range b.tables {
		ch, err := b.ps.SubscribePattern(ctx, pubsub.RealtimePattern(table))
		if err != nil {
			cancel()
			return fmt.Errorf("failed to subscribe to %s changes: %w", table, err)
		}

		b.wg.Add(1)
		go b.run(ctx, table, ch)
	}

	l := log.L()
	l.Info().Strs("tables", b.tables).Msg("change feed broker started")
	return nil
}

// Publish sends change to every instance. key scopes the change for
// transports that partition by key.
func (b *Broker) Publish(ctx context.Context, key string, change *domain.Change) error {
	event, err := pubsub.NewEvent(string(change.Type), key, change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	return b.ps.Publish(ctx, pubsub.RealtimeChannel(change.Table, key), event)
}

// Subscribe registers a local subscriber.
func (b *Broker) Subscribe(spec Spec) (Subscription, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	sub := &subscription{
		id:     uuid.NewString(),
		spec:   spec,
		ch:     make(chan *domain.Change, b.buffer),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// Close stops dispatching and ends every subscription with ErrClosed.
func (b *Broker) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subs {
		sub.end(ErrClosed)
		delete(b.subs, id)
	}
	return nil
}

func (b *Broker) run(ctx context.Context, table string, ch <-chan *pubsub.Event) {
	defer b.wg.Done()

	l := log.L()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				l.Warn().Str(log.FieldTable, table).Msg("change feed channel closed")
				b.endTable(table, ErrClosed)
				return
			}

			var change domain.Change
			if err := event.UnmarshalPayload(&change); err != nil {
				l.Warn().Err(err).Str(log.FieldTable, table).Msg("invalid change payload")
				continue
			}
			b.dispatch(&change)
		}
	}
}

func (b *Broker) dispatch(change *domain.Change) {
	var lagged []*subscription

	b.mu.RLock()
	for _, sub := range b.subs {
		if !sub.spec.Match(change) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			lagged = append(lagged, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range lagged {
		l := log.L()
		l.Warn().Str(log.FieldTable, sub.spec.Table).Str(log.FieldFilter, sub.spec.Filter.String()).Msg("dropping lagging subscriber")
		b.remove(sub, ErrLagged)
	}
}

func (b *Broker) remove(sub *subscription, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		sub.end(err)
	}
}

// endTable ends the subscriptions of a table whose transport stopped.
func (b *Broker) endTable(table string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		if sub.spec.Table == table {
			sub.end(err)
			delete(b.subs, id)
		}
	}
}

// Count returns the number of local subscribers.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

type subscription struct {
	id     string
	spec   Spec
	ch     chan *domain.Change
	broker *Broker

	// guarded by broker.mu
	err   error
	ended bool
}

func (s *subscription) Changes() <-chan *domain.Change {
	return s.ch
}

func (s *subscription) Err() error {
	s.broker.mu.RLock()
	defer s.broker.mu.RUnlock()
	return s.err
}

func (s *subscription) Close() error {
	s.broker.remove(s, nil)
	return nil
}

// end must be called with broker.mu held.
func (s *subscription) end(err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.ch)
}
