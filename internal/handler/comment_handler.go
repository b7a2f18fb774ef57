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

// CommentHandler handles draft comment requests
type CommentHandler struct {
	sessions *session.Manager
	service  service.DraftService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(sessions *session.Manager, draftService service.DraftService) *CommentHandler {
	return &CommentHandler{sessions: sessions, service: draftService}
}

// List handles GET /api/v2/cases/:caseId/draft/comments
// @Summary 코멘트 목록 조회
// @Description 초안에 달린 코멘트를 최신순으로 조회합니다
// @Tags comments
// @Produce json
// @Param caseId path string true "사건 ID"
// @Success 200 {object} common.APIResponse{data=[]domain.CommentSnapshot}
// @Security BearerAuth
// @Router /cases/{caseId}/draft/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	caseID := c.Param("caseId")

	if s := h.sessions.Get(caseID); s != nil {
		comments := s.Comments()
		common.SuccessResponse(c, comments, &common.Meta{CaseID: caseID, Total: int64(len(comments))})
		return
	}

	comments, err := h.service.ListComments(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "코멘트 조회에 실패했습니다.", err)
		return
	}
	if comments == nil {
		comments = []domain.CommentSnapshot{}
	}

	common.SuccessResponse(c, comments, &common.Meta{CaseID: caseID, Total: int64(len(comments))})
}

// Add handles POST /api/v2/cases/:caseId/draft/comments
// @Summary 코멘트 작성
// @Description 선택 구간에 코멘트를 달고 본문에 표식을 남깁니다
// @Tags comments
// @Accept json
// @Produce json
// @Param caseId path string true "사건 ID"
// @Param request body domain.AddCommentRequest true "선택 구간과 코멘트 내용"
// @Success 200 {object} common.APIResponse{data=domain.CommentSnapshot}
// @Failure 400 {object} common.APIResponse
// @Security BearerAuth
// @Router /cases/{caseId}/draft/comments [post]
func (h *CommentHandler) Add(c *gin.Context) {
	caseID := c.Param("caseId")

	var req domain.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다.", err)
		return
	}

	s, err := h.sessions.GetOrCreate(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "세션을 열 수 없습니다.", err)
		return
	}

	snapshot, err := s.AddComment(req.Start, req.End, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrEmptySelection):
			common.ErrorResponse(c, http.StatusBadRequest, "텍스트를 먼저 선택해 주세요.", err)
		case errors.Is(err, common.ErrEmptyComment):
			common.ErrorResponse(c, http.StatusBadRequest, "코멘트 내용을 입력해 주세요.", err)
		default:
			common.ErrorResponse(c, http.StatusInternalServerError, "코멘트 작성에 실패했습니다.", err)
		}
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: snapshot})
}

// ToggleResolved handles PATCH /api/v2/cases/:caseId/draft/comments/:commentId/resolve
// @Summary 코멘트 해결 상태 토글
// @Description 코멘트의 해결 여부를 뒤집고 본문 표식에도 반영합니다
// @Tags comments
// @Produce json
// @Param caseId path string true "사건 ID"
// @Param commentId path string true "코멘트 ID"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /cases/{caseId}/draft/comments/{commentId}/resolve [patch]
func (h *CommentHandler) ToggleResolved(c *gin.Context) {
	caseID := c.Param("caseId")
	commentID := c.Param("commentId")

	s, err := h.sessions.GetOrCreate(c.Request.Context(), caseID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "세션을 열 수 없습니다.", err)
		return
	}

	if !s.ToggleResolved(commentID) {
		common.ErrorResponse(c, http.StatusNotFound, "코멘트를 찾을 수 없습니다.", common.ErrCommentNotFound)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{"id": commentID}})
}
