package collab

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/pkg/logger"
)

// RedisBroker relays collaboration messages through Redis pub/sub so sessions
// on different instances see each other. 토픽당 Redis 채널 하나.
type RedisBroker struct {
	client *redis.Client
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]*redisTopic
}

type redisTopic struct {
	pubsub   *redis.PubSub
	handlers map[int]Handler
	nextID   int
}

// NewRedisBroker creates a Redis-backed broker
func NewRedisBroker(client *redis.Client) *RedisBroker {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBroker{
		client: client,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]*redisTopic),
	}
}

// Publish marshals msg onto the topic's Redis channel
func (b *RedisBroker) Publish(ctx context.Context, topic string, msg *domain.CollaborationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, topic, data).Err()
}

// Subscribe opens (or reuses) the topic's Redis subscription
func (b *RedisBroker) Subscribe(topic string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.subs[topic]
	if !ok {
		pubsub := b.client.Subscribe(b.ctx, topic)
		t = &redisTopic{
			pubsub:   pubsub,
			handlers: make(map[int]Handler),
		}
		b.subs[topic] = t
		go b.readLoop(topic, pubsub)
	}

	id := t.nextID
	t.nextID++
	t.handlers[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		t, ok := b.subs[topic]
		if !ok {
			return
		}
		delete(t.handlers, id)
		if len(t.handlers) == 0 {
			_ = t.pubsub.Close()
			delete(b.subs, topic)
		}
	}, nil
}

// readLoop pumps Redis messages to the topic's handlers
func (b *RedisBroker) readLoop(topic string, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg domain.CollaborationMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				// 형식이 깨진 메시지는 버린다
				logger.GetLogger().Debug().Str("topic", topic).Err(err).Msg("collab: dropping malformed message")
				continue
			}

			b.mu.Lock()
			t, ok := b.subs[topic]
			var handlers []Handler
			if ok {
				handlers = make([]Handler, 0, len(t.handlers))
				for _, h := range t.handlers {
					handlers = append(handlers, h)
				}
			}
			b.mu.Unlock()

			for _, h := range handlers {
				h(&msg)
			}
		case <-b.ctx.Done():
			return
		}
	}
}

// Close shuts down all subscriptions
func (b *RedisBroker) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, t := range b.subs {
		_ = t.pubsub.Close()
		delete(b.subs, topic)
	}
	return nil
}
