package service

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/jurimate/casedraft-backend/internal/common"
	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/internal/markup"
	"github.com/jurimate/casedraft-backend/internal/repository"
	"github.com/jurimate/casedraft-backend/internal/session"
	"github.com/jurimate/casedraft-backend/pkg/cache"
	"github.com/jurimate/casedraft-backend/pkg/logger"
)

// DraftService handles draft persistence and read queries.
// session.Store 구현체이기도 하다: 세션이 이 서비스를 통해 적재/영속한다.
type DraftService interface {
	session.Store

	// GetDetail returns the draft summary for a case
	GetDetail(ctx context.Context, caseID string) (*domain.DraftDetail, error)
	// ListVersions returns the saved versions of a case, newest first
	ListVersions(ctx context.Context, caseID string) ([]domain.VersionListItem, error)
	// GetVersion returns one version snapshot including its content
	GetVersion(ctx context.Context, caseID, versionID string) (*domain.VersionSnapshot, error)
	// ListComments returns the comments of a case, newest first
	ListComments(ctx context.Context, caseID string) ([]domain.CommentSnapshot, error)
	// ListChanges returns the tracked-change log of a case, newest first
	ListChanges(ctx context.Context, caseID string) ([]domain.ChangeLogEntry, error)
	// Presence returns the clients currently editing a case
	Presence(ctx context.Context, caseID string) (*domain.PresenceInfo, error)
}

type draftService struct {
	drafts   repository.DraftRepository
	versions repository.VersionRepository
	comments repository.CommentRepository
	changes  repository.ChangeLogRepository
	cache    cache.Service
}

// NewDraftService creates a new DraftService
func NewDraftService(
	drafts repository.DraftRepository,
	versions repository.VersionRepository,
	comments repository.CommentRepository,
	changes repository.ChangeLogRepository,
	cacheService cache.Service,
) DraftService {
	return &draftService{
		drafts:   drafts,
		versions: versions,
		comments: comments,
		changes:  changes,
		cache:    cacheService,
	}
}

// Load reads the full persisted state of a case for session seeding
func (s *draftService) Load(_ context.Context, caseID string) (*session.StoredDraft, error) {
	draft, err := s.drafts.FindByCaseID(caseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrDraftNotFound
		}
		return nil, err
	}

	history, err := s.versions.FindByCaseID(caseID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.FindByCaseID(caseID)
	if err != nil {
		return nil, err
	}
	changes, err := s.changes.FindByCaseID(caseID)
	if err != nil {
		return nil, err
	}

	return &session.StoredDraft{
		Content:   draft.Content,
		History:   history,
		Comments:  comments,
		ChangeLog: changes,
	}, nil
}

// Persist writes the session state. nil 필드는 이번 쓰기에서 제외된 상태다.
func (s *draftService) Persist(ctx context.Context, caseID string, state session.PersistState) error {
	draft := &domain.Draft{
		CaseID:  caseID,
		Content: state.Content,
	}
	if state.SavedAt != nil {
		draft.SavedAt = *state.SavedAt
	} else if existing, err := s.drafts.FindByCaseID(caseID); err == nil {
		// 저장 시각이 안 바뀐 쓰기는 기존 값을 유지한다
		draft.SavedAt = existing.SavedAt
	}

	if err := s.drafts.Upsert(draft); err != nil {
		return err
	}

	if state.History != nil {
		if err := s.versions.ReplaceAll(caseID, state.History); err != nil {
			return err
		}
	}
	if state.Comments != nil {
		if err := s.comments.ReplaceAll(caseID, state.Comments); err != nil {
			return err
		}
	}
	if state.ChangeLog != nil {
		if err := s.changes.ReplaceAll(caseID, state.ChangeLog); err != nil {
			return err
		}
	}

	if err := s.cache.InvalidateDraft(ctx, caseID); err != nil {
		logger.Warn("draft cache invalidation failed: case=%s err=%v", caseID, err)
	}
	return nil
}

// GetDetail returns the draft summary, served from cache when possible
func (s *draftService) GetDetail(ctx context.Context, caseID string) (*domain.DraftDetail, error) {
	if s.cache.IsAvailable() {
		if data, err := s.cache.GetDraft(ctx, caseID); err == nil {
			var detail domain.DraftDetail
			if json.Unmarshal(data, &detail) == nil {
				return &detail, nil
			}
		}
	}

	draft, err := s.drafts.FindByCaseID(caseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrDraftNotFound
		}
		return nil, err
	}

	versionCount, err := s.versions.Count(caseID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.FindByCaseID(caseID)
	if err != nil {
		return nil, err
	}
	changes, err := s.changes.FindByCaseID(caseID)
	if err != nil {
		return nil, err
	}

	detail := &domain.DraftDetail{
		CaseID:       draft.CaseID,
		Content:      draft.Content,
		SavedAt:      draft.SavedAt.Format("2006-01-02 15:04:05"),
		VersionCount: int(versionCount),
		CommentCount: len(comments),
		ChangeCount:  len(changes),
	}

	if err := s.cache.SetDraft(ctx, caseID, detail); err != nil {
		logger.Warn("draft cache store failed: case=%s err=%v", caseID, err)
	}
	return detail, nil
}

// ListVersions returns the saved versions of a case without content bodies.
// 버전 목록 키는 Persist의 InvalidateDraft가 함께 지운다.
func (s *draftService) ListVersions(ctx context.Context, caseID string) ([]domain.VersionListItem, error) {
	cacheKey := cache.PrefixVersions + caseID
	if s.cache.IsAvailable() {
		var cached []domain.VersionListItem
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	versions, err := s.versions.FindByCaseID(caseID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.VersionListItem, len(versions))
	for i, v := range versions {
		items[i] = domain.VersionListItem{
			ID:      v.ID,
			Reason:  v.Reason,
			SavedAt: v.SavedAt.Format("2006-01-02 15:04:05"),
			Size:    markup.TextLength(v.Content),
		}
	}

	if err := s.cache.Set(ctx, cacheKey, items, cache.TTLVersions); err != nil {
		logger.Warn("version list cache store failed: case=%s err=%v", caseID, err)
	}
	return items, nil
}

// GetVersion returns one version snapshot including its content
func (s *draftService) GetVersion(_ context.Context, caseID, versionID string) (*domain.VersionSnapshot, error) {
	version, err := s.versions.FindByID(caseID, versionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrVersionNotFound
		}
		return nil, err
	}
	return version, nil
}

// ListComments returns the comments of a case, newest first
func (s *draftService) ListComments(_ context.Context, caseID string) ([]domain.CommentSnapshot, error) {
	return s.comments.FindByCaseID(caseID)
}

// ListChanges returns the tracked-change log of a case, newest first
func (s *draftService) ListChanges(_ context.Context, caseID string) ([]domain.ChangeLogEntry, error) {
	return s.changes.FindByCaseID(caseID)
}

// Presence returns the clients currently editing a case
func (s *draftService) Presence(ctx context.Context, caseID string) (*domain.PresenceInfo, error) {
	clients, err := s.cache.ListPresence(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []string{}
	}
	return &domain.PresenceInfo{CaseID: caseID, Clients: clients}, nil
}
