package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jurimate/casedraft-backend/internal/common"
	"github.com/jurimate/casedraft-backend/internal/domain"
	"github.com/jurimate/casedraft-backend/internal/markup"
	"github.com/jurimate/casedraft-backend/internal/service"
	"github.com/jurimate/casedraft-backend/internal/session"
)

// VersionHandler handles draft version history requests
type VersionHandler struct {
	sessions *session.Manager
	service  service.DraftService
}

// NewVersionHandler creates a new VersionHandler
func NewVersionHandler(sessions *session.Manager, draftService service.DraftService) *VersionHandler {
	return &VersionHandler{sessions: sessions, service: draftService}
}

// List handles GET /api/v2/cases/:caseId/draft/versions
// @Summary 버전 목록 조회
// @Description 저장된 버전을 최신순으로 조회합니다 (본문 제외)
// @Tags versions
// @Produce json
// @Param caseId path string true "사건 ID"
// @Success 200 {object} common.APIResponse{data=[]domain.VersionListItem}
// @Security BearerAuth
// @Router /cases/{caseId}/draft/versions [get]
func (h *VersionHandler) List(c *gin.Context) {
	caseID := c.Param("caseId")

	if s := h.sessions.Get(caseID); s != nil {
		versions := s.Versions()
		items := make([]domain.VersionListItem, len(versions))
		for i, v := range versions {
			items[i] = domain.VersionListItem{
				ID:      v.ID,
				Reason:  v.Reason,
				SavedAt: v.SavedAt.Format("2006-01-02 15:04:05"),
				Size:    markup.TextLength(v.Content),
			}
		}
		common.SuccessResponse(c, items, &common.Meta{CaseID: caseID, Total: int64(len(items))})
		return
	}

	items, err := h.service.ListVersions(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "버전 목록 조회에 실패했습니다.", err)
		return
	}
	if items == nil {
		items = []domain.VersionListItem{}
	}

	common.SuccessResponse(c, items, &common.Meta{CaseID: caseID, Total: int64(len(items))})
}

// Get handles GET /api/v2/cases/:caseId/draft/versions/:versionId
// @Summary 버전 본문 조회
// @Description 특정 버전의 전체 본문을 조회합니다
// @Tags versions
// @Produce json
// @Param caseId path string true "사건 ID"
// @Param versionId path string true "버전 ID"
// @Success 200 {object} common.APIResponse{data=domain.VersionSnapshot}
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /cases/{caseId}/draft/versions/{versionId} [get]
func (h *VersionHandler) Get(c *gin.Context) {
	caseID := c.Param("caseId")
	versionID := c.Param("versionId")

	version, err := h.service.GetVersion(c.Request.Context(), caseID, versionID)
	if err != nil {
		if errors.Is(err, common.ErrVersionNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "버전을 찾을 수 없습니다.", err)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "버전 조회에 실패했습니다.", err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: version})
}

// Create handles POST /api/v2/cases/:caseId/draft/versions
// @Summary 수동 버전 저장
// @Description 현재 본문을 수동 버전으로 저장합니다. 빈 본문이면 저장하지 않습니다
// @Tags versions
// @Produce json
// @Param caseId path string true "사건 ID"
// @Success 200 {object} common.APIResponse{data=[]domain.VersionListItem}
// @Security BearerAuth
// @Router /cases/{caseId}/draft/versions [post]
func (h *VersionHandler) Create(c *gin.Context) {
	caseID := c.Param("caseId")

	s, err := h.sessions.GetOrCreate(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "세션을 열 수 없습니다.", err)
		return
	}

	recorded := s.RecordVersion(domain.VersionReasonManual)
	c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{
		"recorded": recorded,
		"count":    len(s.Versions()),
	}})
}

// Restore handles POST /api/v2/cases/:caseId/draft/versions/:versionId/restore
// @Summary 버전 복원
// @Description 버전 본문을 현재 초안으로 되돌립니다. 이력 목록은 바뀌지 않습니다
// @Tags versions
// @Produce json
// @Param caseId path string true "사건 ID"
// @Param versionId path string true "버전 ID"
// @Success 200 {object} common.APIResponse{data=domain.DraftDetail}
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /cases/{caseId}/draft/versions/{versionId}/restore [post]
func (h *VersionHandler) Restore(c *gin.Context) {
	caseID := c.Param("caseId")
	versionID := c.Param("versionId")

	s, err := h.sessions.GetOrCreate(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "세션을 열 수 없습니다.", err)
		return
	}

	if !s.RestoreVersion(versionID) {
		common.ErrorResponse(c, http.StatusNotFound, "버전을 찾을 수 없습니다.", common.ErrVersionNotFound)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: sessionDetail(s)})
}
