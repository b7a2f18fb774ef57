package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/jurimate/casedraft-backend/internal/domain"
)

// quote 컬럼 길이(varchar 500)에 맞춘 발췌 상한
const quoteLimit = 500

// CommentManager owns the comment list. 코멘트는 물리적으로 삭제되지 않고
// resolved 플래그만 오간다.
type CommentManager struct {
	comments []domain.CommentSnapshot
}

func newCommentManager() *CommentManager {
	return &CommentManager{}
}

// add prepends a new unresolved comment. 긴 선택은 발췌만 잘라 보관한다.
func (m *CommentManager) add(quote, text string) *domain.CommentSnapshot {
	if r := []rune(quote); len(r) > quoteLimit {
		quote = string(r[:quoteLimit])
	}
	snapshot := domain.CommentSnapshot{
		ID:        uuid.New().String(),
		Quote:     quote,
		Text:      text,
		Resolved:  false,
		CreatedAt: time.Now(),
	}
	m.comments = append([]domain.CommentSnapshot{snapshot}, m.comments...)
	return &m.comments[0]
}

// toggle flips the resolved flag of the matching comment.
// 반환값은 (새 resolved 상태, 찾았는지 여부).
func (m *CommentManager) toggle(id string) (bool, bool) {
	for i := range m.comments {
		if m.comments[i].ID == id {
			m.comments[i].Resolved = !m.comments[i].Resolved
			return m.comments[i].Resolved, true
		}
	}
	return false, false
}

// list returns a copy, newest first
func (m *CommentManager) list() []domain.CommentSnapshot {
	out := make([]domain.CommentSnapshot, len(m.comments))
	copy(out, m.comments)
	return out
}

// seed loads persisted comments
func (m *CommentManager) seed(comments []domain.CommentSnapshot) {
	m.replace(comments)
}

// replace swaps the list wholesale (원격 업데이트 수신 시)
func (m *CommentManager) replace(comments []domain.CommentSnapshot) {
	m.comments = make([]domain.CommentSnapshot, len(comments))
	copy(m.comments, comments)
}
