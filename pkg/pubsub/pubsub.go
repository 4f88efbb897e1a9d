// Package pubsub fans notification events out across relay nodes.
package pubsub

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/greonxpert/console/pkg/logging"
)

// Common pubsub errors.
var (
	ErrPubSubClosed = errors.New("pubsub is closed")
	ErrEmptyTopic   = errors.New("topic is empty")
)

// Handler receives one published message. Handlers of one subscription
// are called sequentially.
type Handler func(msg []byte)

// PubSub is the interface for pub/sub backends.
type PubSub interface {
	// Subscribe registers handler for topic.
	Subscribe(topic string, handler Handler) (Subscription, error)

	// Publish delivers msg to every subscriber of topic.
	Publish(ctx context.Context, topic string, msg []byte) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close stops every subscription.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// inbox is a subscriber queue that can be closed from either side.
type inbox struct {
	ch   chan []byte
	once sync.Once
}

func newInbox(size int) *inbox {
	return &inbox{ch: make(chan []byte, size)}
}

func (b *inbox) close() {
	b.once.Do(func() { close(b.ch) })
}

// MemoryPubSub delivers within one process. It backs single-node relays
// and tests.
type MemoryPubSub struct {
	topics map[string]map[string]*memorySubscription
	nextID int
	closed bool
	logger logging.Logger
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// QueueSize bounds each subscriber's backlog; messages beyond it are
// dropped.
const QueueSize = 256

// NewMemoryPubSub creates an in-memory backend.
func NewMemoryPubSub(logger logging.Logger) *MemoryPubSub {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &MemoryPubSub{
		topics: make(map[string]map[string]*memorySubscription),
		logger: logger,
	}
}

func (ps *MemoryPubSub) Subscribe(topic string, handler Handler) (Subscription, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil, ErrPubSubClosed
	}
	if ps.topics[topic] == nil {
		ps.topics[topic] = make(map[string]*memorySubscription)
	}

	ps.nextID++
	sub := &memorySubscription{
		id:    topic + "#" + strconv.Itoa(ps.nextID),
		topic: topic,
		ps:    ps,
		inbox: newInbox(QueueSize),
	}
	ps.topics[topic][sub.id] = sub

	ps.wg.Add(1)
	go func() {
		defer ps.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				ps.logger.Error("subscriber panicked", logging.String("topic", topic), logging.Any("panic", r))
			}
		}()
		for msg := range sub.inbox.ch {
			if sub.closed.Load() {
				return
			}
			handler(msg)
		}
	}()

	return sub, nil
}

func (ps *MemoryPubSub) Publish(_ context.Context, topic string, msg []byte) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if ps.closed {
		return ErrPubSubClosed
	}

	data := make([]byte, len(msg))
	copy(data, msg)

	for _, sub := range ps.topics[topic] {
		if sub.closed.Load() {
			continue
		}
		select {
		case sub.inbox.ch <- data:
		default:
			ps.logger.Warn("subscriber queue full, dropping message", logging.String("topic", topic))
		}
	}
	return nil
}

// Ping always succeeds while open.
func (ps *MemoryPubSub) Ping(context.Context) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if ps.closed {
		return ErrPubSubClosed
	}
	return nil
}

// Close stops every subscription and waits for running handlers.
func (ps *MemoryPubSub) Close() error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil
	}
	ps.closed = true
	for _, subs := range ps.topics {
		for _, sub := range subs {
			sub.closed.Store(true)
			sub.inbox.close()
		}
	}
	ps.topics = make(map[string]map[string]*memorySubscription)
	ps.mu.Unlock()

	ps.wg.Wait()
	return nil
}

// SubscriberCount returns the number of subscribers of topic.
func (ps *MemoryPubSub) SubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.topics[topic])
}

type memorySubscription struct {
	id     string
	topic  string
	ps     *MemoryPubSub
	inbox  *inbox
	closed atomic.Bool
}

func (s *memorySubscription) Unsubscribe() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.ps.mu.Lock()
	if subs := s.ps.topics[s.topic]; subs != nil {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.ps.topics, s.topic)
		}
	}
	s.ps.mu.Unlock()

	s.inbox.close()
	return nil
}

func (s *memorySubscription) Topic() string { return s.topic }
