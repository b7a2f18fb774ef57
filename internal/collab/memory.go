package collab

import (
	"context"
	"sync"

	"github.com/jurimate/casedraft-backend/internal/domain"
)

// MemoryBroker fans messages out to subscribers within one process.
// 같은 인스턴스에 붙은 세션끼리의 채널 (단일 기기 브라우저 탭에 해당).
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string]map[int]Handler
	nextID int
	closed bool
}

// NewMemoryBroker creates an in-process broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		topics: make(map[string]map[int]Handler),
	}
}

// Publish delivers msg to every subscriber of topic.
// 발신 세션 자신도 수신한다 — clientID 비교로 걸러내는 것은 수신측 책임.
func (b *MemoryBroker) Publish(_ context.Context, topic string, msg *domain.CollaborationMessage) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.topics[topic]))
	for _, h := range b.topics[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Subscribe registers handler for topic and returns an unsubscribe function
func (b *MemoryBroker) Subscribe(topic string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.topics[topic][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.topics[topic]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.topics, topic)
			}
		}
	}, nil
}

// Close drops all subscriptions
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = make(map[string]map[int]Handler)
	b.closed = true
	return nil
}
