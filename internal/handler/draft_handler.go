package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jurimate/casedraft-backend/internal/common"
	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/internal/service"
	"github.com/jurimate/casedraft-backend/internal/session"
)

// DraftHandler handles draft document requests
type DraftHandler struct {
	sessions *session.Manager
	service  service.DraftService
}

// NewDraftHandler creates a new DraftHandler
func NewDraftHandler(sessions *session.Manager, draftService service.DraftService) *DraftHandler {
	return &DraftHandler{sessions: sessions, service: draftService}
}

// Get handles GET /api/v2/cases/:caseId/draft
// @Summary 사건 초안 조회
// @Description 사건의 현재 초안 본문과 요약 정보를 조회합니다
// @Tags draft
// @Produce json
// @Param caseId path string true "사건 ID"
// @Success 200 {object} common.APIResponse{data=domain.DraftDetail}
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /cases/{caseId}/draft [get]
func (h *DraftHandler) Get(c *gin.Context) {
	caseID := c.Param("caseId")

	// 편집 중인 세션이 있으면 메모리 상태가 최신이다
	if s := h.sessions.Get(caseID); s != nil {
		s.Touch()
		c.JSON(http.StatusOK, common.APIResponse{Data: sessionDetail(s)})
		return
	}

	detail, err := h.service.GetDetail(c.Request.Context(), caseID)
	if err != nil {
		if errors.Is(err, common.ErrDraftNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "초안을 찾을 수 없습니다.", err)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "초안 조회에 실패했습니다.", err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: detail})
}

// Save handles PUT /api/v2/cases/:caseId/draft
// @Summary 초안 저장
// @Description 초안 본문을 저장하고 수동 버전을 남깁니다
// @Tags draft
// @Accept json
// @Produce json
// @Param caseId path string true "사건 ID"
// @Param request body domain.SaveDraftRequest true "저장할 본문"
// @Success 200 {object} common.APIResponse{data=domain.DraftDetail}
// @Failure 400 {object} common.APIResponse
// @Security BearerAuth
// @Router /cases/{caseId}/draft [put]
func (h *DraftHandler) Save(c *gin.Context) {
	caseID := c.Param("caseId")

	var req domain.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다.", err)
		return
	}

	s, err := h.sessions.GetOrCreate(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "세션을 열 수 없습니다.", err)
		return
	}

	s.SaveManual(req.Content)
	c.JSON(http.StatusOK, common.APIResponse{Data: sessionDetail(s)})
}

type trackingRequest struct {
	Enabled bool `json:"enabled"`
}

// SetTracking handles PUT /api/v2/cases/:caseId/draft/tracking
// @Summary 변경 추적 켜기/끄기
// @Description 변경 추적을 토글합니다. 꺼도 기존 표식과 이력은 유지됩니다
// @Tags draft
// @Accept json
// @Produce json
// @Param caseId path string true "사건 ID"
// @Param request body trackingRequest true "추적 여부"
// @Success 200 {object} common.APIResponse
// @Security BearerAuth
// @Router /cases/{caseId}/draft/tracking [put]
func (h *DraftHandler) SetTracking(c *gin.Context) {
	caseID := c.Param("caseId")

	var req trackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다.", err)
		return
	}

	s, err := h.sessions.GetOrCreate(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "세션을 열 수 없습니다.", err)
		return
	}

	s.SetTracking(req.Enabled)
	c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{"enabled": req.Enabled}})
}

// ListChanges handles GET /api/v2/cases/:caseId/draft/changes
// @Summary 변경 이력 조회
// @Description 추적된 변경 이력을 최신순으로 조회합니다
// @Tags draft
// @Produce json
// @Param caseId path string true "사건 ID"
// @Success 200 {object} common.APIResponse{data=[]domain.ChangeLogEntry}
// @Security BearerAuth
// @Router /cases/{caseId}/draft/changes [get]
func (h *DraftHandler) ListChanges(c *gin.Context) {
	caseID := c.Param("caseId")

	if s := h.sessions.Get(caseID); s != nil {
		entries := s.ChangeLog()
		common.SuccessResponse(c, entries, &common.Meta{CaseID: caseID, Total: int64(len(entries))})
		return
	}

	entries, err := h.service.ListChanges(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "변경 이력 조회에 실패했습니다.", err)
		return
	}
	if entries == nil {
		entries = []domain.ChangeLogEntry{}
	}

	common.SuccessResponse(c, entries, &common.Meta{CaseID: caseID, Total: int64(len(entries))})
}

// Presence handles GET /api/v2/cases/:caseId/draft/presence
// @Summary 접속 세션 조회
// @Description 같은 초안을 열어둔 편집 세션 목록을 조회합니다
// @Tags draft
// @Produce json
// @Param caseId path string true "사건 ID"
// @Success 200 {object} common.APIResponse{data=domain.PresenceInfo}
// @Security BearerAuth
// @Router /cases/{caseId}/draft/presence [get]
func (h *DraftHandler) Presence(c *gin.Context) {
	caseID := c.Param("caseId")

	info, err := h.service.Presence(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "접속 세션 조회에 실패했습니다.", err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: info})
}

// sessionDetail builds the draft summary from live session state
func sessionDetail(s *session.Session) *domain.DraftDetail {
	content := s.Content()
	versions := s.Versions()

	savedAt := ""
	if len(versions) > 0 {
		savedAt = versions[0].SavedAt.Format("2006-01-02 15:04:05")
	}

	return &domain.DraftDetail{
		CaseID:       s.CaseID(),
		Content:      content,
		SavedAt:      savedAt,
		VersionCount: len(versions),
		CommentCount: len(s.Comments()),
		ChangeCount:  len(s.ChangeLog()),
	}
}
