// Package session implements the per-case draft collaboration session:
// change tracking, comments, version history and the peer broadcaster.
// 열려 있는 사건 초안 하나당 세션 인스턴스 하나, 닫히면 폐기한다.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jurimate/casedraft-backend/internal/collab"
	"github.com/jurimate/casedraft-backend/internal/common"
	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/internal/markup"
)

// Config 세션 동작 파라미터
type Config struct {
	HistoryLimit     int           // 보관할 최대 버전 수
	ChangeLogLimit   int           // 변경 이력 최대 길이
	SnippetLimit     int           // 변경 이력 발췌 최대 길이 (rune)
	AutosaveInterval time.Duration // 자동 버전 저장 주기
	DebounceDelay    time.Duration // content-update 송신 디바운스
	Heartbeat        time.Duration // presence 하트비트 주기
}

// DefaultConfig returns the portal's default tuning
func DefaultConfig() Config {
	return Config{
		HistoryLimit:     20,
		ChangeLogLimit:   50,
		SnippetLimit:     80,
		AutosaveInterval: 30 * time.Second,
		DebounceDelay:    1500 * time.Millisecond,
		Heartbeat:        10 * time.Second,
	}
}

// PersistState carries the state written through the persist callback.
// nil 슬라이스 / nil 포인터는 "이번 쓰기에서 변경 없음"을 뜻한다 —
// 각 컴포넌트는 자기가 소유한 상태만 명시적으로 넘긴다.
type PersistState struct {
	Content   string
	History   []domain.VersionSnapshot
	SavedAt   *time.Time
	Comments  []domain.CommentSnapshot
	ChangeLog []domain.ChangeLogEntry
}

// PersistFunc writes the draft state to durable storage.
// 호스팅 계층(서비스)이 제공하며, 실패해도 세션 상태는 유지된다.
type PersistFunc func(state PersistState) error

// NoticeFunc surfaces a transient user-visible message
type NoticeFunc func(n domain.Notice)

// PresenceFunc refreshes a client's presence TTL in the store.
// 자기 하트비트 송신과 peer presence 수신 양쪽에서 불린다.
type PresenceFunc func(clientID string)

// Session is one active editing session for a case draft
type Session struct {
	caseID string
	cfg    Config

	mu       sync.Mutex
	content  string
	tracker  *ChangeTracker
	comments *CommentManager
	versions *VersionHistory
	bcast    *Broadcaster

	persist PersistFunc
	notify  NoticeFunc

	cancel     context.CancelFunc
	closed     bool
	lastActive time.Time
}

// New creates a session seeded with previously persisted state
func New(caseID string, cfg Config, broker collab.Broker, persist PersistFunc, notify NoticeFunc) *Session {
	if persist == nil {
		persist = func(PersistState) error { return nil }
	}
	if notify == nil {
		notify = func(domain.Notice) {}
	}

	s := &Session{
		caseID:     caseID,
		cfg:        cfg,
		tracker:    newChangeTracker(cfg.ChangeLogLimit, cfg.SnippetLimit),
		comments:   newCommentManager(),
		versions:   newVersionHistory(cfg.HistoryLimit),
		persist:    persist,
		notify:     notify,
		lastActive: time.Now(),
	}
	s.bcast = newBroadcaster(caseID, uuid.New().String(), broker, cfg, s)
	return s
}

// OnPresence registers the presence sink. Start 이전에 호출.
func (s *Session) OnPresence(fn PresenceFunc) {
	s.bcast.presence = fn
}

// Seed loads previously persisted state into the session. Start 이전에 호출.
func (s *Session) Seed(content string, history []domain.VersionSnapshot, comments []domain.CommentSnapshot, changes []domain.ChangeLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = markup.Sanitize(content)
	s.versions.seed(history)
	s.comments.seed(comments)
	s.tracker.seed(changes)
}

// Start launches the autosave timer and the broadcaster.
// ctx 취소 또는 Close 호출 시 모든 타이머/구독이 정리된다.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.bcast.start(ctx); err != nil {
		cancel()
		return err
	}

	go s.autosaveLoop(ctx)
	return nil
}

// autosaveLoop records an automatic version at a fixed interval
func (s *Session) autosaveLoop(ctx context.Context) {
	if s.cfg.AutosaveInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RecordVersion(domain.VersionReasonAuto)
		case <-ctx.Done():
			return
		}
	}
}

// Close tears the session down: timers, heartbeat, subscription.
// 세션 수명 밖으로 살아남는 리소스가 없어야 한다.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.bcast.close()
}

// CaseID returns the case this session edits
func (s *Session) CaseID() string { return s.caseID }

// ClientID returns the session's broadcast identity
func (s *Session) ClientID() string { return s.bcast.clientID }

// Content returns the current sanitized markup
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Comments returns a copy of the comment list (newest first)
func (s *Session) Comments() []domain.CommentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comments.list()
}

// ChangeLog returns a copy of the change log (newest first)
func (s *Session) ChangeLog() []domain.ChangeLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.entries()
}

// Versions returns a copy of the version history (newest first)
func (s *Session) Versions() []domain.VersionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions.list()
}

// Touch marks the session as recently used (idle eviction 기준)
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// IdleSince returns the last activity time
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SetTracking toggles change interception. 끄더라도 기존 표식과
// 이력은 지우지 않는다.
func (s *Session) SetTracking(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.setEnabled(on)
}

// SetComposing marks IME composition state. 조합 중 입력은 추적하지 않는다.
func (s *Session) SetComposing(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.setComposing(on)
}

// InsertText inserts text at the stripped-text offset. 추적이 켜져 있으면
// change id가 달린 표식으로 감싸서 끼워 넣고 이력에 기록한다.
func (s *Session) InsertText(offset int, text string) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	// 끼워 넣을 수 없는 위치면 문서도 이력도 건드리지 않는다
	if _, err := markup.InsertAt(s.content, offset, ""); err != nil {
		s.mu.Unlock()
		return err
	}
	fragment, entry := s.tracker.trackInsert(text)
	next, err := markup.InsertAt(s.content, offset, fragment)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.content = markup.Sanitize(next)

	state := PersistState{Content: s.content}
	if entry != nil {
		state.ChangeLog = s.tracker.entries()
	}
	s.persistLocked(state)
	s.mu.Unlock()

	s.bcast.scheduleUpdate()
	return nil
}

// NativeEdit records a delete/format edit that already mutated the surface
// (브라우저가 DOM을 먼저 바꾼 뒤 사후 기록하는 경우)
func (s *Session) NativeEdit(inputType, affected, newContent string) {
	s.mu.Lock()
	s.content = markup.Sanitize(newContent)
	entry := s.tracker.trackNative(inputType, affected)

	state := PersistState{Content: s.content}
	if entry != nil {
		state.ChangeLog = s.tracker.entries()
	}
	s.persistLocked(state)
	s.mu.Unlock()

	s.bcast.scheduleUpdate()
}

// AddComment attaches a comment to the [start,end) selection.
// 빈 선택/빈 본문이면 상태를 바꾸지 않고 실패한다.
func (s *Session) AddComment(start, end int, text string) (*domain.CommentSnapshot, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if start < 0 || end <= start {
		s.notify(domain.Notice{Kind: domain.NoticeError, Message: "텍스트를 먼저 선택해 주세요."})
		return nil, common.ErrEmptySelection
	}
	if text == "" {
		s.notify(domain.Notice{Kind: domain.NoticeError, Message: "코멘트 내용을 입력해 주세요."})
		return nil, common.ErrEmptyComment
	}

	quote, err := markup.ExtractText(s.content, start, end)
	if err != nil {
		s.notify(domain.Notice{Kind: domain.NoticeError, Message: "텍스트를 먼저 선택해 주세요."})
		return nil, common.ErrEmptySelection
	}
	if strings.TrimSpace(quote) == "" {
		s.notify(domain.Notice{Kind: domain.NoticeError, Message: "텍스트를 먼저 선택해 주세요."})
		return nil, common.ErrEmptySelection
	}

	snapshot := s.comments.add(quote, text)

	annotated, err := markup.Annotate(s.content, start, end, markup.AttrCommentID, snapshot.ID, markup.ClassComment)
	if err != nil {
		// 요소 경계를 가로지르면 선택 텍스트를 살균해 다시 끼워 넣는다
		span := markup.WrapTagged(quote, markup.AttrCommentID, snapshot.ID, markup.ClassComment)
		annotated, err = markup.ReplaceRange(s.content, start, end, span)
		if err != nil {
			// 폴백도 실패하면 문서는 그대로 두고 코멘트만 남긴다
			annotated = s.content
		}
	}
	s.content = markup.Sanitize(annotated)

	s.persistLocked(PersistState{Content: s.content, Comments: s.comments.list()})

	s.bcast.scheduleUpdate()
	return snapshot, nil
}

// ToggleResolved flips the resolved flag of a comment and mirrors it on
// every span tagged with the comment id. 모르는 id면 false.
func (s *Session) ToggleResolved(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved, ok := s.comments.toggle(id)
	if !ok {
		return false
	}

	s.content = markup.SetSpanClass(s.content, markup.AttrCommentID, id, markup.ClassResolved, resolved)
	s.persistLocked(PersistState{Content: s.content, Comments: s.comments.list()})

	s.bcast.scheduleUpdate()
	return true
}

// RecordVersion snapshots the current content. 본문이 비어 있으면 저장하지
// 않고, 동일 내용의 기존 스냅샷은 제거된다.
func (s *Session) RecordVersion(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.versions.record(s.content, reason)
	if !ok {
		return false
	}

	savedAt := snap.SavedAt
	s.persistLocked(PersistState{Content: s.content, History: s.versions.list(), SavedAt: &savedAt})

	if reason == domain.VersionReasonManual {
		s.notify(domain.Notice{Kind: domain.NoticeSaved, Message: "버전이 저장되었습니다."})
	}
	return true
}

// RestoreVersion copies a snapshot's content back into the draft.
// 이력 목록 자체는 바뀌지 않는다 (복원은 새 항목을 만들지 않는다).
func (s *Session) RestoreVersion(id string) bool {
	s.mu.Lock()

	snap := s.versions.find(id)
	if snap == nil {
		s.mu.Unlock()
		return false
	}

	s.content = markup.Sanitize(snap.Content)
	s.persistLocked(PersistState{Content: s.content})
	s.mu.Unlock()

	s.bcast.scheduleUpdate()
	return true
}

// SaveManual replaces the content from an explicit user save, records a
// manual version and announces the save to peers.
func (s *Session) SaveManual(content string) {
	s.mu.Lock()
	s.content = markup.Sanitize(content)

	now := time.Now()
	state := PersistState{Content: s.content, SavedAt: &now}
	if _, ok := s.versions.record(s.content, domain.VersionReasonManual); ok {
		state.History = s.versions.list()
	}
	s.persistLocked(state)
	s.mu.Unlock()

	s.notify(domain.Notice{Kind: domain.NoticeSaved, Message: "초안이 저장되었습니다."})
	s.bcast.publishSave()
	s.bcast.scheduleUpdate()
}

// persistLocked invokes the persist callback. 저장 실패는 알림으로만
// 드러내고 세션 상태는 그대로 둔다.
func (s *Session) persistLocked(state PersistState) {
	if err := s.persist(state); err != nil {
		s.notify(domain.Notice{Kind: domain.NoticeError, Message: "저장에 실패했습니다. 잠시 후 다시 시도됩니다."})
	}
}

// buildUpdatePayload snapshots the state carried by a content-update
func (s *Session) buildUpdatePayload() *domain.ContentUpdatePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &domain.ContentUpdatePayload{
		Content:   s.content,
		Comments:  s.comments.list(),
		ChangeLog: s.tracker.entries(),
	}
}

// applyRemote replaces local state with an accepted peer update.
// 수신 본문도 저장 전에 반드시 살균한다.
func (s *Session) applyRemote(p *domain.ContentUpdatePayload, localPending bool) {
	s.mu.Lock()
	s.content = markup.Sanitize(p.Content)
	s.comments.replace(p.Comments)
	s.tracker.replace(p.ChangeLog)
	s.persistLocked(PersistState{
		Content:   s.content,
		Comments:  s.comments.list(),
		ChangeLog: s.tracker.entries(),
	})
	s.mu.Unlock()

	if localPending {
		// 보내지 못한 로컬 변경 위에 원격 상태가 덮였다
		s.notify(domain.Notice{Kind: domain.NoticeConflict, Message: "다른 세션의 변경이 먼저 반영되었습니다."})
	}
	s.notify(domain.Notice{Kind: domain.NoticeSynced, Message: "다른 세션과 동기화되었습니다."})
}

// peerSaved surfaces a peer's explicit save
func (s *Session) peerSaved() {
	s.notify(domain.Notice{Kind: domain.NoticePeerSave, Message: "다른 세션에서 방금 저장했습니다."})
}
