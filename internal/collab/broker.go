// Package collab provides the local broadcast channel between draft sessions
// editing the same case. 전달 보장과 영속성이 없는 순수 pub/sub이다.
package collab

import (
	"context"

	"github.com/jurimate/casedraft-backend/internal/domain"
)

// Handler receives messages published to a subscribed topic
type Handler func(msg *domain.CollaborationMessage)

// Broker is the publish/subscribe channel scoped by case topic.
// Subscribe returns an unsubscribe function; 구독 해제 후에는 핸들러가
// 다시 호출되지 않는다.
type Broker interface {
	Publish(ctx context.Context, topic string, msg *domain.CollaborationMessage) error
	Subscribe(topic string, handler Handler) (func(), error)
	Close() error
}

// Topic returns the broadcast topic for a case draft
func Topic(caseID string) string {
	return "draft:" + caseID
}
