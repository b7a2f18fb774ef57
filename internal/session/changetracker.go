package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/internal/markup"
)

// 발췌할 텍스트가 없을 때 이력에 남기는 표시
const snippetPlaceholder = "(내용 없음)"

// ChangeTracker intercepts insertions while enabled and records native
// delete/format edits after the fact. 목록은 최신순, 상한 초과분은 버린다.
type ChangeTracker struct {
	enabled      bool
	composing    bool
	limit        int
	snippetLimit int
	log          []domain.ChangeLogEntry
}

func newChangeTracker(limit, snippetLimit int) *ChangeTracker {
	return &ChangeTracker{
		enabled:      true,
		limit:        limit,
		snippetLimit: snippetLimit,
	}
}

func (t *ChangeTracker) setEnabled(on bool)   { t.enabled = on }
func (t *ChangeTracker) setComposing(on bool) { t.composing = on }

// trackInsert returns the markup fragment to splice in place of the raw
// insertion. 추적 중이면 change id가 달린 표식으로 감싸고 이력에 기록한다.
// IME 조합 중에는 가로채지 않는다 (조합 한 글자가 여러 번 기록되는 것 방지).
func (t *ChangeTracker) trackInsert(text string) (string, *domain.ChangeLogEntry) {
	if !t.enabled || t.composing {
		return markup.EscapeText(text), nil
	}

	entry := t.append(domain.ChangeActionInsert, text)
	return markup.WrapTagged(text, markup.AttrChangeID, entry.ID, markup.ClassInserted), entry
}

// trackNative records a delete/format edit the surface already applied.
// action은 네이티브 입력 종류에서 유추한다.
func (t *ChangeTracker) trackNative(inputType, affected string) *domain.ChangeLogEntry {
	if !t.enabled || t.composing {
		return nil
	}

	action := domain.ChangeActionEdit
	if strings.HasPrefix(inputType, "delete") {
		action = domain.ChangeActionDelete
	}

	snippet := strings.TrimSpace(affected)
	if snippet == "" {
		snippet = snippetPlaceholder
	}
	return t.append(action, snippet)
}

// append prepends a new entry and enforces the cap
func (t *ChangeTracker) append(action, snippet string) *domain.ChangeLogEntry {
	if r := []rune(snippet); len(r) > t.snippetLimit {
		snippet = string(r[:t.snippetLimit])
	}

	entry := domain.ChangeLogEntry{
		ID:        uuid.New().String(),
		Action:    action,
		Snippet:   snippet,
		CreatedAt: time.Now(),
	}

	t.log = append([]domain.ChangeLogEntry{entry}, t.log...)
	if len(t.log) > t.limit {
		t.log = t.log[:t.limit]
	}
	return &t.log[0]
}

// entries returns a copy of the log, newest first
func (t *ChangeTracker) entries() []domain.ChangeLogEntry {
	out := make([]domain.ChangeLogEntry, len(t.log))
	copy(out, t.log)
	return out
}

// seed loads persisted entries
func (t *ChangeTracker) seed(entries []domain.ChangeLogEntry) {
	t.replace(entries)
}

// replace swaps the log wholesale (원격 업데이트 수신 시)
func (t *ChangeTracker) replace(entries []domain.ChangeLogEntry) {
	t.log = make([]domain.ChangeLogEntry, len(entries))
	copy(t.log, entries)
	if len(t.log) > t.limit {
		t.log = t.log[:t.limit]
	}
}
