package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jurimate/casedraft-backend/internal/common"
	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/internal/session"
	"github.com/jurimate/casedraft-backend/pkg/cache"
)

// MockDraftRepository is a mock implementation of DraftRepository
type MockDraftRepository struct {
	mock.Mock
}

func (m *MockDraftRepository) Upsert(draft *domain.Draft) error {
	args := m.Called(draft)
	return args.Error(0)
}

func (m *MockDraftRepository) FindByCaseID(caseID string) (*domain.Draft, error) {
	args := m.Called(caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Draft), args.Error(1)
}

// MockVersionRepository is a mock implementation of VersionRepository
type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) ReplaceAll(caseID string, versions []domain.VersionSnapshot) error {
	args := m.Called(caseID, versions)
	return args.Error(0)
}

func (m *MockVersionRepository) FindByCaseID(caseID string) ([]domain.VersionSnapshot, error) {
	args := m.Called(caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VersionSnapshot), args.Error(1)
}

func (m *MockVersionRepository) FindByID(caseID, versionID string) (*domain.VersionSnapshot, error) {
	args := m.Called(caseID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VersionSnapshot), args.Error(1)
}

func (m *MockVersionRepository) Count(caseID string) (int64, error) {
	args := m.Called(caseID)
	return args.Get(0).(int64), args.Error(1)
}

// MockCommentRepository is a mock implementation of CommentRepository
type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) ReplaceAll(caseID string, comments []domain.CommentSnapshot) error {
	args := m.Called(caseID, comments)
	return args.Error(0)
}

func (m *MockCommentRepository) FindByCaseID(caseID string) ([]domain.CommentSnapshot, error) {
	args := m.Called(caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CommentSnapshot), args.Error(1)
}

// MockChangeLogRepository is a mock implementation of ChangeLogRepository
type MockChangeLogRepository struct {
	mock.Mock
}

func (m *MockChangeLogRepository) ReplaceAll(caseID string, entries []domain.ChangeLogEntry) error {
	args := m.Called(caseID, entries)
	return args.Error(0)
}

func (m *MockChangeLogRepository) FindByCaseID(caseID string) ([]domain.ChangeLogEntry, error) {
	args := m.Called(caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChangeLogEntry), args.Error(1)
}

// MockCacheService is a mock implementation of cache.Service
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCacheService) GetDraft(ctx context.Context, caseID string) ([]byte, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheService) SetDraft(ctx context.Context, caseID string, data interface{}) error {
	args := m.Called(ctx, caseID, data)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateDraft(ctx context.Context, caseID string) error {
	args := m.Called(ctx, caseID)
	return args.Error(0)
}

func (m *MockCacheService) MarkPresence(ctx context.Context, caseID, clientID string) error {
	args := m.Called(ctx, caseID, clientID)
	return args.Error(0)
}

func (m *MockCacheService) ListPresence(ctx context.Context, caseID string) ([]string, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCacheService) ClearPresence(ctx context.Context, caseID, clientID string) error {
	args := m.Called(ctx, caseID, clientID)
	return args.Error(0)
}

func (m *MockCacheService) IsAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type draftServiceMocks struct {
	drafts   *MockDraftRepository
	versions *MockVersionRepository
	comments *MockCommentRepository
	changes  *MockChangeLogRepository
	cache    *MockCacheService
}

func newDraftService() (DraftService, *draftServiceMocks) {
	m := &draftServiceMocks{
		drafts:   new(MockDraftRepository),
		versions: new(MockVersionRepository),
		comments: new(MockCommentRepository),
		changes:  new(MockChangeLogRepository),
		cache:    new(MockCacheService),
	}
	svc := NewDraftService(m.drafts, m.versions, m.comments, m.changes, m.cache)
	return svc, m
}

func TestLoadMissingDraft(t *testing.T) {
	svc, m := newDraftService()
	m.drafts.On("FindByCaseID", "case-1").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Load(context.Background(), "case-1")

	assert.ErrorIs(t, err, common.ErrDraftNotFound)
	m.drafts.AssertExpectations(t)
}

func TestLoadAggregatesState(t *testing.T) {
	svc, m := newDraftService()
	m.drafts.On("FindByCaseID", "case-1").Return(&domain.Draft{CaseID: "case-1", Content: "<p>초안</p>"}, nil)
	m.versions.On("FindByCaseID", "case-1").Return([]domain.VersionSnapshot{{ID: "v1"}}, nil)
	m.comments.On("FindByCaseID", "case-1").Return([]domain.CommentSnapshot{{ID: "c1"}, {ID: "c2"}}, nil)
	m.changes.On("FindByCaseID", "case-1").Return([]domain.ChangeLogEntry{}, nil)

	stored, err := svc.Load(context.Background(), "case-1")

	require.NoError(t, err)
	assert.Equal(t, "<p>초안</p>", stored.Content)
	assert.Len(t, stored.History, 1)
	assert.Len(t, stored.Comments, 2)
	assert.Empty(t, stored.ChangeLog)
}

func TestPersistWritesOnlyChangedState(t *testing.T) {
	svc, m := newDraftService()
	saved := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	m.drafts.On("FindByCaseID", "case-1").Return(&domain.Draft{CaseID: "case-1", SavedAt: saved}, nil)
	m.drafts.On("Upsert", mock.MatchedBy(func(d *domain.Draft) bool {
		// 저장 시각이 안 넘어온 쓰기는 기존 값을 유지해야 한다
		return d.CaseID == "case-1" && d.Content == "<p>수정</p>" && d.SavedAt.Equal(saved)
	})).Return(nil)
	m.comments.On("ReplaceAll", "case-1", mock.Anything).Return(nil)
	m.cache.On("InvalidateDraft", mock.Anything, "case-1").Return(nil)

	err := svc.Persist(context.Background(), "case-1", session.PersistState{
		Content:  "<p>수정</p>",
		Comments: []domain.CommentSnapshot{{ID: "c1"}},
	})

	require.NoError(t, err)
	m.versions.AssertNotCalled(t, "ReplaceAll", mock.Anything, mock.Anything)
	m.changes.AssertNotCalled(t, "ReplaceAll", mock.Anything, mock.Anything)
	m.drafts.AssertExpectations(t)
	m.comments.AssertExpectations(t)
	m.cache.AssertExpectations(t)
}

func TestPersistWithSavedAt(t *testing.T) {
	svc, m := newDraftService()
	saved := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)
	m.drafts.On("Upsert", mock.MatchedBy(func(d *domain.Draft) bool {
		return d.SavedAt.Equal(saved)
	})).Return(nil)
	m.versions.On("ReplaceAll", "case-1", mock.Anything).Return(nil)
	m.cache.On("InvalidateDraft", mock.Anything, "case-1").Return(nil)

	err := svc.Persist(context.Background(), "case-1", session.PersistState{
		Content: "<p>저장됨</p>",
		SavedAt: &saved,
		History: []domain.VersionSnapshot{{ID: "v1", Content: "<p>저장됨</p>"}},
	})

	require.NoError(t, err)
	m.drafts.AssertNotCalled(t, "FindByCaseID", mock.Anything)
	m.versions.AssertExpectations(t)
}

func TestGetDetailCacheHit(t *testing.T) {
	svc, m := newDraftService()
	cached, _ := json.Marshal(domain.DraftDetail{CaseID: "case-1", Content: "<p>캐시</p>"})
	m.cache.On("IsAvailable").Return(true)
	m.cache.On("GetDraft", mock.Anything, "case-1").Return(cached, nil)

	detail, err := svc.GetDetail(context.Background(), "case-1")

	require.NoError(t, err)
	assert.Equal(t, "<p>캐시</p>", detail.Content)
	m.drafts.AssertNotCalled(t, "FindByCaseID", mock.Anything)
}

func TestGetDetailCacheMiss(t *testing.T) {
	svc, m := newDraftService()
	m.cache.On("IsAvailable").Return(true)
	m.cache.On("GetDraft", mock.Anything, "case-1").Return(nil, errors.New("redis: nil"))
	m.drafts.On("FindByCaseID", "case-1").Return(&domain.Draft{
		CaseID:  "case-1",
		Content: "<p>본문</p>",
		SavedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}, nil)
	m.versions.On("Count", "case-1").Return(int64(3), nil)
	m.comments.On("FindByCaseID", "case-1").Return([]domain.CommentSnapshot{{ID: "c1"}}, nil)
	m.changes.On("FindByCaseID", "case-1").Return([]domain.ChangeLogEntry{{ID: "e1"}, {ID: "e2"}}, nil)
	m.cache.On("SetDraft", mock.Anything, "case-1", mock.Anything).Return(nil)

	detail, err := svc.GetDetail(context.Background(), "case-1")

	require.NoError(t, err)
	assert.Equal(t, 3, detail.VersionCount)
	assert.Equal(t, 1, detail.CommentCount)
	assert.Equal(t, 2, detail.ChangeCount)
	assert.Equal(t, "2026-03-02 09:00:00", detail.SavedAt)
	m.cache.AssertExpectations(t)
}

func TestGetVersionNotFound(t *testing.T) {
	svc, m := newDraftService()
	m.versions.On("FindByID", "case-1", "v9").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.GetVersion(context.Background(), "case-1", "v9")

	assert.ErrorIs(t, err, common.ErrVersionNotFound)
}

func TestListVersionsMapsItems(t *testing.T) {
	svc, m := newDraftService()
	m.cache.On("IsAvailable").Return(false)
	m.cache.On("Set", mock.Anything, cache.PrefixVersions+"case-1", mock.Anything, cache.TTLVersions).Return(nil)
	m.versions.On("FindByCaseID", "case-1").Return([]domain.VersionSnapshot{
		{ID: "v2", Reason: domain.VersionReasonManual, Content: "<p>손해배상</p>", SavedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)},
	}, nil)

	items, err := svc.ListVersions(context.Background(), "case-1")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "v2", items[0].ID)
	assert.Equal(t, 4, items[0].Size, "크기는 태그를 뺀 글자 수다")
}

func TestListVersionsCacheHit(t *testing.T) {
	svc, m := newDraftService()
	m.cache.On("IsAvailable").Return(true)
	m.cache.On("Get", mock.Anything, cache.PrefixVersions+"case-1", mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(2).(*[]domain.VersionListItem)
			*dest = []domain.VersionListItem{{ID: "v1", Reason: domain.VersionReasonAuto}}
		}).Return(nil)

	items, err := svc.ListVersions(context.Background(), "case-1")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "v1", items[0].ID)
	m.versions.AssertNotCalled(t, "FindByCaseID", mock.Anything)
}

func TestPresenceEmptyIsNotNil(t *testing.T) {
	svc, m := newDraftService()
	m.cache.On("ListPresence", mock.Anything, "case-1").Return(nil, nil)

	info, err := svc.Presence(context.Background(), "case-1")

	require.NoError(t, err)
	assert.NotNil(t, info.Clients)
	assert.Empty(t, info.Clients)
}
