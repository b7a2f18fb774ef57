package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jurimate/casedraft-backend/internal/collab"
	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/pkg/logger"
)

// Broadcaster publishes local edits to peer sessions for the same case and
// applies newer remote updates. 타임스탬프 last-writer-wins, 병합 없음.
type Broadcaster struct {
	caseID   string
	clientID string
	topic    string
	broker   collab.Broker
	cfg      Config
	session  *Session
	presence PresenceFunc // Start 전에 설정, 이후 불변

	mu       sync.Mutex
	lastSent int64 // 마지막 송신 타임스탬프 (단조 증가)
	lastSeen int64 // 마지막으로 반영한 원격 타임스탬프
	debounce *time.Timer
	pending  bool
	unsub    func()
	ctx      context.Context
	closed   bool
}

func newBroadcaster(caseID, clientID string, broker collab.Broker, cfg Config, s *Session) *Broadcaster {
	return &Broadcaster{
		caseID:   caseID,
		clientID: clientID,
		topic:    collab.Topic(caseID),
		broker:   broker,
		cfg:      cfg,
		session:  s,
	}
}

// start subscribes to the case topic, announces presence and begins the
// heartbeat. broker가 없으면 협업 기능만 조용히 꺼진다.
func (b *Broadcaster) start(ctx context.Context) error {
	if b.broker == nil {
		return nil
	}
	b.ctx = ctx

	unsub, err := b.broker.Subscribe(b.topic, b.handle)
	if err != nil {
		// 채널을 열 수 없어도 편집은 계속된다
		l := logger.WithCaseID(b.caseID)
		l.Warn().Err(err).Msg("collab channel unavailable, editing continues alone")
		return nil
	}
	b.mu.Lock()
	b.unsub = unsub
	b.mu.Unlock()

	b.publishPresence()
	go b.heartbeatLoop(ctx)
	return nil
}

// heartbeatLoop re-announces presence so peers can show the editing indicator
func (b *Broadcaster) heartbeatLoop(ctx context.Context) {
	if b.cfg.Heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(b.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.publishPresence()
		case <-ctx.Done():
			return
		}
	}
}

// scheduleUpdate (re)starts the debounce timer for a content-update publish.
// 변경이 이어지는 동안에는 송신을 미루고, 조용해지면 한 번만 보낸다.
func (b *Broadcaster) scheduleUpdate() {
	if b.broker == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.pending = true
	if b.debounce != nil {
		b.debounce.Stop()
	}
	b.debounce = time.AfterFunc(b.cfg.DebounceDelay, b.publishUpdate)
}

// publishUpdate sends the full local state as a content-update
func (b *Broadcaster) publishUpdate() {
	payload := b.session.buildUpdatePayload()
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.pending = false
	ts := b.nextTimestampLocked()
	b.mu.Unlock()

	b.publish(&domain.CollaborationMessage{
		Type:      domain.MessageContentUpdate,
		CaseID:    b.caseID,
		ClientID:  b.clientID,
		Timestamp: ts,
		Payload:   data,
	})
}

// publishSave announces an explicit save to peers
func (b *Broadcaster) publishSave() {
	if b.broker == nil {
		return
	}
	b.mu.Lock()
	ts := b.nextTimestampLocked()
	b.mu.Unlock()

	b.publish(&domain.CollaborationMessage{
		Type:      domain.MessageSave,
		CaseID:    b.caseID,
		ClientID:  b.clientID,
		Timestamp: ts,
	})
}

// publishPresence announces this session on the case topic and refreshes
// its own presence TTL in the store
func (b *Broadcaster) publishPresence() {
	b.mu.Lock()
	ts := b.nextTimestampLocked()
	b.mu.Unlock()

	b.publish(&domain.CollaborationMessage{
		Type:      domain.MessagePresence,
		CaseID:    b.caseID,
		ClientID:  b.clientID,
		Timestamp: ts,
	})
	b.markPresence(b.clientID)
}

func (b *Broadcaster) markPresence(clientID string) {
	if b.presence != nil {
		b.presence(clientID)
	}
}

func (b *Broadcaster) publish(msg *domain.CollaborationMessage) {
	ctx := b.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := b.broker.Publish(ctx, b.topic, msg); err != nil {
		l := logger.WithCaseID(b.caseID)
		l.Debug().Err(err).Str("type", msg.Type).Msg("collab publish failed")
	}
}

// nextTimestampLocked returns a monotonically increasing send timestamp.
// 시계가 뒤로 가도 직전 송신값보다 커지도록 보정한다.
func (b *Broadcaster) nextTimestampLocked() int64 {
	ts := time.Now().UnixMilli()
	if ts <= b.lastSent {
		ts = b.lastSent + 1
	}
	b.lastSent = ts
	return ts
}

// handle applies a message received on the case topic.
// 자기 자신이 보낸 메시지는 종류와 무관하게 무시한다.
func (b *Broadcaster) handle(msg *domain.CollaborationMessage) {
	if msg == nil || msg.ClientID == b.clientID {
		return
	}

	switch msg.Type {
	case domain.MessagePresence:
		// peer의 TTL 키를 갱신해 유휴 상태로도 편집 중 표시가 유지되게 한다
		b.markPresence(msg.ClientID)
	case domain.MessageSave:
		b.session.peerSaved()
	case domain.MessageContentUpdate:
		b.handleContentUpdate(msg)
	default:
		// 모르는 종류는 버린다
	}
}

// handleContentUpdate applies a remote update iff its timestamp is strictly
// newer than the last applied one. 오래됐거나 깨진 메시지는 조용히 버린다.
func (b *Broadcaster) handleContentUpdate(msg *domain.CollaborationMessage) {
	if msg.Timestamp <= 0 || len(msg.Payload) == 0 {
		return
	}

	var payload domain.ContentUpdatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}

	b.mu.Lock()
	if msg.Timestamp <= b.lastSeen {
		b.mu.Unlock()
		return
	}
	b.lastSeen = msg.Timestamp
	localPending := b.pending
	b.mu.Unlock()

	b.session.applyRemote(&payload, localPending)
}

// close stops the heartbeat and debounce timers and drops the subscription
func (b *Broadcaster) close() {
	b.mu.Lock()
	b.closed = true
	if b.debounce != nil {
		b.debounce.Stop()
		b.debounce = nil
	}
	unsub := b.unsub
	b.unsub = nil
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
