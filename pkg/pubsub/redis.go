package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greonxpert/console/pkg/logging"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces channel names, e.g. "greonxpert:".
	Prefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Prefix:       "greonxpert:",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisPubSub fans messages out through Redis PUBLISH/SUBSCRIBE so that
// every relay node sees every event.
type RedisPubSub struct {
	client *redis.Client
	prefix string
	logger logging.Logger

	subs   map[*redisSubscription]struct{}
	closed bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRedisPubSub connects to Redis and verifies the connection.
func NewRedisPubSub(ctx context.Context, cfg RedisConfig, logger logging.Logger) (*RedisPubSub, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisPubSub{
		client: client,
		prefix: cfg.Prefix,
		logger: logger,
		subs:   make(map[*redisSubscription]struct{}),
	}, nil
}

func (ps *RedisPubSub) channel(topic string) string { return ps.prefix + topic }

func (ps *RedisPubSub) Subscribe(topic string, handler Handler) (Subscription, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return nil, ErrPubSubClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs := ps.client.Subscribe(ctx, ps.channel(topic))
	if _, err := rs.Receive(ctx); err != nil {
		cancel()
		rs.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	sub := &redisSubscription{topic: topic, ps: ps, rs: rs, cancel: cancel}
	ps.subs[sub] = struct{}{}

	ps.wg.Add(1)
	go func() {
		defer ps.wg.Done()
		for msg := range rs.Channel() {
			handler([]byte(msg.Payload))
		}
	}()

	return sub, nil
}

func (ps *RedisPubSub) Publish(ctx context.Context, topic string, msg []byte) error {
	ps.mu.Lock()
	closed := ps.closed
	ps.mu.Unlock()
	if closed {
		return ErrPubSubClosed
	}
	return ps.client.Publish(ctx, ps.channel(topic), msg).Err()
}

func (ps *RedisPubSub) Ping(ctx context.Context) error {
	return ps.client.Ping(ctx).Err()
}

// Close unsubscribes everything, waits for handlers and closes the client.
func (ps *RedisPubSub) Close() error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil
	}
	ps.closed = true
	subs := ps.subs
	ps.subs = nil
	ps.mu.Unlock()

	var errs []error
	for sub := range subs {
		errs = append(errs, sub.close())
	}
	ps.wg.Wait()
	errs = append(errs, ps.client.Close())
	return errors.Join(errs...)
}

type redisSubscription struct {
	topic  string
	ps     *RedisPubSub
	rs     *redis.PubSub
	cancel context.CancelFunc
	once   sync.Once
}

func (s *redisSubscription) close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.rs.Close()
	})
	return err
}

func (s *redisSubscription) Unsubscribe() error {
	s.ps.mu.Lock()
	delete(s.ps.subs, s)
	s.ps.mu.Unlock()
	return s.close()
}

func (s *redisSubscription) Topic() string { return s.topic }
