package domain

import "encoding/json"

// 협업 메시지 종류
const (
	MessagePresence      = "presence"
	MessageSave          = "save"
	MessageContentUpdate = "content-update"
)

// CollaborationMessage is the ephemeral envelope exchanged between sessions
// editing the same case draft. 저장되지 않으며 전달 보장도 없다.
type CollaborationMessage struct {
	Type      string          `json:"type"` // presence, save, content-update
	CaseID    string          `json:"case_id"`
	ClientID  string          `json:"client_id"`
	Timestamp int64           `json:"timestamp"` // unix millis at send time
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ContentUpdatePayload carries the full replacement state for a content-update
type ContentUpdatePayload struct {
	Content   string            `json:"content"`
	Comments  []CommentSnapshot `json:"comments"`
	ChangeLog []ChangeLogEntry  `json:"change_log"`
}

// 알림 종류 (UI에 잠시 표시했다가 사라지는 메시지)
const (
	NoticeInfo     = "info"
	NoticeError    = "error"
	NoticeSaved    = "saved"
	NoticeSynced   = "synced"
	NoticePeerSave = "peer-save"
	NoticeConflict = "conflict-possible"
)

// Notice is a transient user-visible message surfaced by a draft session
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
