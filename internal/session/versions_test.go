package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurimate/casedraft-backend/internal/domain"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AutosaveInterval = 0 // 테스트에서는 수동 호출만
	cfg.Heartbeat = 0
	s := New("case-123", cfg, nil, nil, nil)
	return s
}

func TestRecordVersionSkipsEmptyContent(t *testing.T) {
	s := newTestSession(t)

	assert.False(t, s.RecordVersion(domain.VersionReasonAuto))

	s.SaveManual("<p><br></p>")
	assert.False(t, s.RecordVersion(domain.VersionReasonAuto))
	assert.Empty(t, s.Versions())
}

func TestRecordVersionDeduplicatesIdenticalContent(t *testing.T) {
	s := newTestSession(t)
	s.SaveManual("<p>준비서면 1차</p>") // manual 버전 1개 생성

	// 내용이 같으면 기존 스냅샷이 제거되고 새 것이 머리에 들어간다
	assert.True(t, s.RecordVersion(domain.VersionReasonAuto))
	versions := s.Versions()
	require.Len(t, versions, 1)
	assert.Equal(t, domain.VersionReasonAuto, versions[0].Reason)
}

func TestAutosaveFiresTwiceOnUnchangedContent(t *testing.T) {
	s := newTestSession(t)
	s.SaveManual("<p>변론요지서</p>")
	before := s.Versions()
	require.Len(t, before, 1)

	// 타이머가 연달아 두 번 울려도 버전 수는 늘지 않는다
	s.RecordVersion(domain.VersionReasonAuto)
	s.RecordVersion(domain.VersionReasonAuto)
	assert.Len(t, s.Versions(), 1)
}

func TestVersionHistoryNeverExceedsLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutosaveInterval = 0
	cfg.HistoryLimit = 3
	s := New("case-123", cfg, nil, nil, nil)

	for i := 0; i < 10; i++ {
		s.SaveManual("<p>개정판 " + string(rune('가'+i)) + "</p>")
		assert.LessOrEqual(t, len(s.Versions()), 3)
	}
	assert.Len(t, s.Versions(), 3)

	// 가장 오래된 것부터 밀려나고 머리에는 마지막 저장본이 남는다
	versions := s.Versions()
	assert.Contains(t, versions[0].Content, string(rune('가'+9)))
}

func TestRestoreVersionUnknownID(t *testing.T) {
	s := newTestSession(t)
	s.SaveManual("<p>원본</p>")
	before := s.Content()

	assert.False(t, s.RestoreVersion("no-such-id"))
	assert.Equal(t, before, s.Content())
}

func TestRestoreVersionReplacesContentOnly(t *testing.T) {
	s := newTestSession(t)
	s.SaveManual("<p>1차 서면</p>")
	first := s.Versions()[0]

	s.SaveManual("<p>2차 서면</p>")
	require.Len(t, s.Versions(), 2)

	assert.True(t, s.RestoreVersion(first.ID))
	assert.Equal(t, first.Content, s.Content())
	// 복원은 이력에 새 항목을 만들지 않는다
	assert.Len(t, s.Versions(), 2)
}

func TestRecordVersionPersistsHistoryAndSavedAt(t *testing.T) {
	var last PersistState
	cfg := DefaultConfig()
	cfg.AutosaveInterval = 0
	s := New("case-123", cfg, nil, func(st PersistState) error {
		last = st
		return nil
	}, nil)

	s.SaveManual("<p>항소이유서</p>")

	require.NotNil(t, last.History)
	require.NotNil(t, last.SavedAt)
	assert.Len(t, last.History, 1)
	// 소유하지 않은 상태는 넘기지 않는다
	assert.Nil(t, last.Comments)
	assert.Nil(t, last.ChangeLog)
}
