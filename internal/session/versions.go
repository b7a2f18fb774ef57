package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/internal/markup"
)

// VersionHistory keeps the most recent snapshots of the draft content.
// 스냅샷은 생성 후 불변이며, 상한을 넘으면 가장 오래된 것부터 버린다.
type VersionHistory struct {
	limit    int
	versions []domain.VersionSnapshot
}

func newVersionHistory(limit int) *VersionHistory {
	return &VersionHistory{limit: limit}
}

// record snapshots content unless its stripped text is empty.
// 동일한 내용의 기존 스냅샷은 먼저 제거해 중복 버전을 막는다.
func (h *VersionHistory) record(content, reason string) (*domain.VersionSnapshot, bool) {
	if strings.TrimSpace(markup.StripTags(content)) == "" {
		return nil, false
	}

	// 내용이 같은 스냅샷 제거 (위치 무관)
	kept := h.versions[:0]
	for _, v := range h.versions {
		if v.Content != content {
			kept = append(kept, v)
		}
	}
	h.versions = kept

	snap := domain.VersionSnapshot{
		ID:      uuid.New().String(),
		Content: content,
		Reason:  reason,
		SavedAt: time.Now(),
	}
	h.versions = append([]domain.VersionSnapshot{snap}, h.versions...)
	if len(h.versions) > h.limit {
		h.versions = h.versions[:h.limit]
	}
	return &h.versions[0], true
}

// find returns the snapshot with the given id, or nil
func (h *VersionHistory) find(id string) *domain.VersionSnapshot {
	for i := range h.versions {
		if h.versions[i].ID == id {
			return &h.versions[i]
		}
	}
	return nil
}

// list returns a copy, newest first
func (h *VersionHistory) list() []domain.VersionSnapshot {
	out := make([]domain.VersionSnapshot, len(h.versions))
	copy(out, h.versions)
	return out
}

// seed loads persisted snapshots, enforcing the limit
func (h *VersionHistory) seed(versions []domain.VersionSnapshot) {
	h.versions = make([]domain.VersionSnapshot, len(versions))
	copy(h.versions, versions)
	if len(h.versions) > h.limit {
		h.versions = h.versions[:h.limit]
	}
}
