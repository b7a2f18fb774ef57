package domain

import "time"

// 변경 이력 액션 종류
const (
	ChangeActionInsert = "insert"
	ChangeActionDelete = "delete"
	ChangeActionEdit   = "edit"
)

// 버전 저장 사유
const (
	VersionReasonAuto   = "auto"
	VersionReasonManual = "manual"
)

// Draft represents the current draft document for a case (jm_case_draft table)
// content는 항상 살균된 마크업 문자열로 저장된다
type Draft struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	CaseID    string    `gorm:"column:case_id;size:64;uniqueIndex" json:"case_id"`
	UserID    string    `gorm:"column:user_id;size:64;index" json:"user_id"`
	Content   string    `gorm:"column:content;type:mediumtext" json:"content"`
	SavedAt   time.Time `gorm:"column:saved_at" json:"saved_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the table name for Draft
func (Draft) TableName() string {
	return "jm_case_draft"
}

// ChangeLogEntry records one tracked edit (jm_draft_change table)
// 최신순으로 보관하며 세션당 최대 개수를 넘으면 오래된 항목부터 버린다
type ChangeLogEntry struct {
	ID        string    `gorm:"column:change_id;primaryKey;size:36" json:"id"`
	CaseID    string    `gorm:"column:case_id;size:64;index" json:"-"`
	Action    string    `gorm:"column:action;size:10" json:"action"` // insert, delete, edit
	Snippet   string    `gorm:"column:snippet;size:255" json:"snippet"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name for ChangeLogEntry
func (ChangeLogEntry) TableName() string {
	return "jm_draft_change"
}

// CommentSnapshot is a comment attached to a text selection (jm_draft_comment table)
// quote는 작성 시점의 선택 텍스트로 이후 변하지 않는다. 삭제 연산은 없다.
type CommentSnapshot struct {
	ID        string    `gorm:"column:comment_id;primaryKey;size:36" json:"id"`
	CaseID    string    `gorm:"column:case_id;size:64;index" json:"-"`
	Quote     string    `gorm:"column:quote;size:500" json:"quote"`
	Text      string    `gorm:"column:text;type:text" json:"text"`
	Resolved  bool      `gorm:"column:resolved" json:"resolved"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name for CommentSnapshot
func (CommentSnapshot) TableName() string {
	return "jm_draft_comment"
}

// VersionSnapshot is an immutable full copy of the draft content (jm_draft_version table)
type VersionSnapshot struct {
	ID      string    `gorm:"column:version_id;primaryKey;size:36" json:"id"`
	CaseID  string    `gorm:"column:case_id;size:64;index" json:"-"`
	Content string    `gorm:"column:content;type:mediumtext" json:"content"`
	Reason  string    `gorm:"column:reason;size:10" json:"reason"` // auto, manual
	SavedAt time.Time `gorm:"column:saved_at" json:"saved_at"`
}

// TableName returns the table name for VersionSnapshot
func (VersionSnapshot) TableName() string {
	return "jm_draft_version"
}

// SaveDraftRequest 초안 저장 요청
type SaveDraftRequest struct {
	Content string `json:"content" binding:"required"`
}

// AddCommentRequest 코멘트 작성 요청
// Start/End는 태그를 제거한 본문 기준 [start,end) 오프셋
type AddCommentRequest struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Quote string `json:"quote"`
	Text  string `json:"text"`
}

// DraftDetail 초안 상세 응답
type DraftDetail struct {
	CaseID       string `json:"case_id"`
	Content      string `json:"content"`
	SavedAt      string `json:"saved_at"`
	VersionCount int    `json:"version_count"`
	CommentCount int    `json:"comment_count"`
	ChangeCount  int    `json:"change_count"`
}

// VersionListItem 버전 목록 항목 (본문 제외)
type VersionListItem struct {
	ID      string `json:"id"`
	Reason  string `json:"reason"`
	SavedAt string `json:"saved_at"`
	Size    int    `json:"size"`
}

// PresenceInfo 동일 문서를 열어둔 세션 목록
type PresenceInfo struct {
	CaseID  string   `json:"case_id"`
	Clients []string `json:"clients"`
}
