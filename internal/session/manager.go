package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jurimate/casedraft-backend/internal/collab"
	"github.com/jurimate/casedraft-backend/internal/common"
	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/pkg/logger"
)

// StoredDraft is the durable state a session is seeded from
type StoredDraft struct {
	Content   string
	History   []domain.VersionSnapshot
	Comments  []domain.CommentSnapshot
	ChangeLog []domain.ChangeLogEntry
}

// Store loads and persists draft state. 서비스 계층이 구현한다.
type Store interface {
	Load(ctx context.Context, caseID string) (*StoredDraft, error)
	Persist(ctx context.Context, caseID string, state PersistState) error
}

// NoticeSink routes a session notice to whoever is watching the case
type NoticeSink func(caseID string, n domain.Notice)

// PresenceSink refreshes a client's presence TTL for a case
type PresenceSink func(caseID, clientID string)

// Manager keeps one live session per case and evicts idle ones.
// 같은 사건을 다시 열면 살아 있는 세션을 그대로 재사용한다.
type Manager struct {
	cfg      Config
	broker   collab.Broker
	store    Store
	notify   NoticeSink
	presence PresenceSink
	idleTTL  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a session arena. idleTTL<=0 이면 유휴 세션을 회수하지 않는다.
func NewManager(cfg Config, broker collab.Broker, store Store, notify NoticeSink, presence PresenceSink, idleTTL time.Duration) *Manager {
	if notify == nil {
		notify = func(string, domain.Notice) {}
	}
	return &Manager{
		cfg:      cfg,
		broker:   broker,
		store:    store,
		notify:   notify,
		presence: presence,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// Start launches the idle eviction loop
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	if m.idleTTL > 0 {
		go m.evictLoop(m.ctx)
	}
}

// GetOrCreate returns the live session for a case, loading persisted
// state when the case is opened for the first time.
func (m *Manager) GetOrCreate(ctx context.Context, caseID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[caseID]; ok {
		m.mu.Unlock()
		s.Touch()
		return s, nil
	}
	m.mu.Unlock()

	stored, err := m.load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// 적재하는 동안 다른 요청이 먼저 만들었을 수 있다
	if s, ok := m.sessions[caseID]; ok {
		s.Touch()
		return s, nil
	}

	s := New(caseID, m.cfg, m.broker, m.persistFunc(caseID), m.noticeFunc(caseID))
	s.Seed(stored.Content, stored.History, stored.Comments, stored.ChangeLog)
	if m.presence != nil {
		s.OnPresence(func(clientID string) { m.presence(caseID, clientID) })
	}

	runCtx := m.ctx
	if runCtx == nil {
		runCtx = context.Background()
	}
	if err := s.Start(runCtx); err != nil {
		s.Close()
		return nil, err
	}

	m.sessions[caseID] = s
	logger.Info("draft session opened: case=%s client=%s", caseID, s.ClientID())
	return s, nil
}

// Get returns the live session for a case, or nil if none is open
func (m *Manager) Get(caseID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[caseID]
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Remove closes and drops the session for a case
func (m *Manager) Remove(caseID string) {
	m.mu.Lock()
	s, ok := m.sessions[caseID]
	if ok {
		delete(m.sessions, caseID)
	}
	m.mu.Unlock()

	if ok {
		s.Close()
		logger.Info("draft session closed: case=%s", caseID)
	}
}

// Shutdown closes every live session
func (m *Manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		live = append(live, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
}

// load reads persisted state; 아직 초안이 없으면 빈 상태로 시작한다
func (m *Manager) load(ctx context.Context, caseID string) (*StoredDraft, error) {
	if m.store == nil {
		return &StoredDraft{}, nil
	}
	stored, err := m.store.Load(ctx, caseID)
	if err != nil {
		if errors.Is(err, common.ErrDraftNotFound) {
			return &StoredDraft{}, nil
		}
		return nil, err
	}
	return stored, nil
}

func (m *Manager) persistFunc(caseID string) PersistFunc {
	if m.store == nil {
		return nil
	}
	return func(state PersistState) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.store.Persist(ctx, caseID, state)
	}
}

func (m *Manager) noticeFunc(caseID string) NoticeFunc {
	return func(n domain.Notice) {
		m.notify(caseID, n)
	}
}

// evictLoop closes sessions with no activity for idleTTL
func (m *Manager) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(m.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		// 마지막 상태를 버전으로 남기고 닫는다
		s.RecordVersion(domain.VersionReasonAuto)
		s.Close()
		logger.Info("idle draft session evicted: case=%s", s.CaseID())
	}
}
