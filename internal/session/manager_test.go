package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurimate/casedraft-backend/internal/collab"
	"github.com/jurimate/casedraft-backend/internal/common"
	"github.com/jurimate/casedraft-backend/internal/domain"
)

// fakeStore는 메모리에만 상태를 들고 있는 Store 구현
type fakeStore struct {
	mu       sync.Mutex
	drafts   map[string]*StoredDraft
	persists int
}

func newFakeStore() *fakeStore {
	return &fakeStore{drafts: make(map[string]*StoredDraft)}
}

func (f *fakeStore) Load(_ context.Context, caseID string) (*StoredDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[caseID]
	if !ok {
		return nil, common.ErrDraftNotFound
	}
	return d, nil
}

func (f *fakeStore) Persist(_ context.Context, caseID string, state PersistState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persists++
	d, ok := f.drafts[caseID]
	if !ok {
		d = &StoredDraft{}
		f.drafts[caseID] = d
	}
	d.Content = state.Content
	if state.History != nil {
		d.History = state.History
	}
	if state.Comments != nil {
		d.Comments = state.Comments
	}
	if state.ChangeLog != nil {
		d.ChangeLog = state.ChangeLog
	}
	return nil
}

func newTestManager(t *testing.T, store Store, idleTTL time.Duration) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AutosaveInterval = 0
	cfg.Heartbeat = 0
	m := NewManager(cfg, nil, store, nil, nil, idleTTL)
	m.Start(context.Background())
	t.Cleanup(m.Shutdown)
	return m
}

func TestGetOrCreateReusesLiveSession(t *testing.T) {
	m := newTestManager(t, newFakeStore(), 0)

	first, err := m.GetOrCreate(context.Background(), "case-1")
	require.NoError(t, err)
	second, err := m.GetOrCreate(context.Background(), "case-1")
	require.NoError(t, err)

	assert.Same(t, first, second, "같은 사건은 살아 있는 세션을 재사용한다")

	other, err := m.GetOrCreate(context.Background(), "case-2")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestGetOrCreateSeedsFromStore(t *testing.T) {
	store := newFakeStore()
	store.drafts["case-1"] = &StoredDraft{
		Content: "<p>계약서 초안</p>",
		History: []domain.VersionSnapshot{{ID: "v1", Content: "<p>계약서 초안</p>"}},
	}
	m := newTestManager(t, store, 0)

	s, err := m.GetOrCreate(context.Background(), "case-1")
	require.NoError(t, err)
	assert.Equal(t, "<p>계약서 초안</p>", s.Content())
	assert.Len(t, s.Versions(), 1)
}

func TestGetOrCreateMissingDraftStartsEmpty(t *testing.T) {
	m := newTestManager(t, newFakeStore(), 0)

	s, err := m.GetOrCreate(context.Background(), "case-new")
	require.NoError(t, err)
	assert.Empty(t, s.Content())
	assert.Empty(t, s.Versions())
}

func TestSessionPersistsThroughStore(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)

	s, err := m.GetOrCreate(context.Background(), "case-1")
	require.NoError(t, err)
	s.SaveManual("<p>수정된 초안</p>")

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Contains(t, store.drafts, "case-1")
	assert.Equal(t, "<p>수정된 초안</p>", store.drafts["case-1"].Content)
	assert.Positive(t, store.persists)
}

func TestRemoveClosesSession(t *testing.T) {
	m := newTestManager(t, newFakeStore(), 0)

	s, err := m.GetOrCreate(context.Background(), "case-1")
	require.NoError(t, err)

	m.Remove("case-1")
	assert.Nil(t, m.Get("case-1"))

	again, err := m.GetOrCreate(context.Background(), "case-1")
	require.NoError(t, err)
	assert.NotSame(t, s, again, "제거 후에는 새 세션이 만들어진다")
}

func TestManagerRoutesPresenceToSink(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutosaveInterval = 0
	cfg.Heartbeat = 20 * time.Millisecond

	var mu sync.Mutex
	marked := make(map[string][]string)
	m := NewManager(cfg, collab.NewMemoryBroker(), newFakeStore(), nil, func(caseID, clientID string) {
		mu.Lock()
		marked[caseID] = append(marked[caseID], clientID)
		mu.Unlock()
	}, 0)
	m.Start(context.Background())
	t.Cleanup(m.Shutdown)

	s, err := m.GetOrCreate(context.Background(), "case-1")
	require.NoError(t, err)

	// 하트비트가 돌 때마다 사건/클라이언트 단위로 presence가 갱신된다
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(marked["case-1"]) >= 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, s.ClientID(), marked["case-1"][0])
}

func TestEvictIdleClosesStaleSessions(t *testing.T) {
	m := newTestManager(t, newFakeStore(), 50*time.Millisecond)

	s, err := m.GetOrCreate(context.Background(), "case-1")
	require.NoError(t, err)
	s.SaveManual("<p>마지막 작업</p>")

	require.Eventually(t, func() bool {
		return m.Get("case-1") == nil
	}, time.Second, 10*time.Millisecond, "유휴 세션은 회수된다")
}
