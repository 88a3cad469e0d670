package pubsub

import (
	"context"
	"path"
	"sync"
)

type memorySubscription struct {
	key     string
	pattern bool
	ch      chan *Event
	done    <-chan struct{}
	cancel  context.CancelFunc
	once    sync.Once
}

func (s *memorySubscription) close() {
	s.once.Do(func() {
		s.cancel()
		close(s.ch)
	})
}

// MemoryPubSub is an in-process PubSub for single-instance deployments
// and tests. Patterns use Redis glob semantics for '*'.
type MemoryPubSub struct {
	mu   sync.RWMutex
	subs map[string]*memorySubscription
}

// NewMemoryPubSub creates an in-process PubSub.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string]*memorySubscription)}
}

// Publish delivers the event to every matching subscription. It waits for
// room in a full subscription until that subscription ends or ctx is done.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subs {
		if !sub.matches(channel) {
			continue
		}
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *memorySubscription) matches(channel string) bool {
	if !s.pattern {
		return s.key == channel
	}
	ok, err := path.Match(s.key, channel)
	return err == nil && ok
}

// Subscribe subscribes to a specific channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.subscribe(ctx, channel, false), nil
}

// SubscribePattern subscribes to channels matching a glob pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return m.subscribe(ctx, pattern, true), nil
}

func (m *MemoryPubSub) subscribe(ctx context.Context, key string, pattern bool) <-chan *Event {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		key:     key,
		pattern: pattern,
		ch:      make(chan *Event, 256),
		done:    subCtx.Done(),
		cancel:  cancel,
	}

	m.mu.Lock()
	if existing, ok := m.subs[key]; ok {
		existing.close()
	}
	m.subs[key] = sub
	m.mu.Unlock()

	go func() {
		<-subCtx.Done()
		m.remove(sub)
	}()

	return sub.ch
}

func (m *MemoryPubSub) remove(sub *memorySubscription) {
	// Cancel first so a publisher blocked on sub releases the read lock.
	sub.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.subs[sub.key]; ok && cur == sub {
		delete(m.subs, sub.key)
	}
	sub.close()
}

// Unsubscribe unsubscribes from a channel or pattern.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.RLock()
	sub, ok := m.subs[channel]
	m.mu.RUnlock()
	if ok {
		m.remove(sub)
	}
	return nil
}

// Close closes all subscriptions.
func (m *MemoryPubSub) Close() error {
	m.mu.RLock()
	for _, sub := range m.subs {
		sub.cancel()
	}
	m.mu.RUnlock()

	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*memorySubscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	return nil
}
