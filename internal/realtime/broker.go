// Package realtime relays domain events to per-ticket change feeds so any
// service instance can stream them to connected clients.
package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Subscription delivers payloads published on one channel until closed.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Broker is a fan-out message bus.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// RedisBroker uses Redis PUBLISH/SUBSCRIBE.
type RedisBroker struct {
	client redis.UniversalClient
}

// NewRedisBroker wraps a go-redis client.
func NewRedisBroker(client redis.UniversalClient) *RedisBroker {
	return &RedisBroker{client: client}
}

// Publish implements Broker.
func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe implements Broker. The subscription is confirmed before returning.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			default:
				// slow consumer; drop rather than block the redis reader
			}
		}
	}()
	return &redisSubscription{pubsub: pubsub, out: out}, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan []byte
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }
func (s *redisSubscription) Close() error            { return s.pubsub.Close() }

// MemoryBroker is an in-process Broker for single-instance runs and tests.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memorySubscription]struct{})}
}

// Publish implements Broker.
func (b *MemoryBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[channel] {
		select {
		case sub.out <- payload:
		default:
		}
	}
	return nil
}

// Subscribe implements Broker.
func (b *MemoryBroker) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{broker: b, channel: channel, out: make(chan []byte, 16)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*memorySubscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	return sub, nil
}

type memorySubscription struct {
	broker  *MemoryBroker
	channel string
	out     chan []byte
	once    sync.Once
}

func (s *memorySubscription) Messages() <-chan []byte { return s.out }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs[s.channel], s)
		if len(s.broker.subs[s.channel]) == 0 {
			delete(s.broker.subs, s.channel)
		}
		s.broker.mu.Unlock()
		close(s.out)
	})
	return nil
}
