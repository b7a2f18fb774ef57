package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jurimate/casedraft-backend/internal/middleware"
	"github.com/jurimate/casedraft-backend/internal/session"
	"github.com/jurimate/casedraft-backend/internal/ws"
	"github.com/jurimate/casedraft-backend/pkg/cache"
	"github.com/jurimate/casedraft-backend/pkg/logger"
)

// 편집 화면이 보내는 메시지 종류
const (
	editorInsert      = "insert"
	editorNativeEdit  = "native_edit"
	editorSave        = "save"
	editorComposition = "composition"
	editorTracking    = "tracking"
)

// editorMessage is one inbound message from the editor
type editorMessage struct {
	Type      string `json:"type"`
	Offset    int    `json:"offset"`
	Text      string `json:"text"`
	InputType string `json:"input_type"`
	Affected  string `json:"affected"`
	Content   string `json:"content"`
	On        bool   `json:"on"`
}

// WSHandler handles draft collaboration WebSocket connections
type WSHandler struct {
	hub            *ws.Hub
	sessions       *session.Manager
	cache          cache.Service
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *ws.Hub, sessions *session.Manager, cacheService cache.Service, allowedOrigins string) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		sessions:       sessions,
		cache:          cacheService,
		allowedOrigins: parseOrigins(allowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// parseOrigins parses comma-separated origins string
func parseOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// checkOrigin validates the request origin against allowed origins
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // Same-origin requests don't have Origin header
	}

	// If no allowed origins configured, allow all (development mode)
	if len(h.allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

// Connect handles GET /ws/cases/:caseId/draft — WebSocket upgrade
// @Summary 초안 편집 WebSocket
// @Description 편집 이벤트를 수신하고 알림/동기화 이벤트를 밀어줍니다
// @Tags draft
// @Param caseId path string true "사건 ID"
// @Router /ws/cases/{caseId}/draft [get]
func (h *WSHandler) Connect(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "로그인이 필요합니다"})
		return
	}

	caseID := c.Param("caseId")
	s, err := h.sessions.GetOrCreate(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "세션을 열 수 없습니다"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, caseID, s.ClientID(), h.handleEditorMessage)
	h.hub.Register(client)
	h.markPresence(caseID, s.ClientID())

	// 같은 방의 기존 연결에 새 접속을 알린다
	h.hub.SendToCase(caseID, &ws.Event{Type: ws.EventPresence, Payload: gin.H{
		"client_id": s.ClientID(),
		"clients":   h.hub.ClientCount(caseID),
	}})

	go client.WritePump()
	go client.ReadPump()
}

// handleEditorMessage dispatches one inbound editor message to the session
func (h *WSHandler) handleEditorMessage(c *ws.Client, data []byte) {
	var msg editorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn("malformed editor message dropped: case=%s err=%v", c.CaseID(), err)
		return
	}

	s := h.sessions.Get(c.CaseID())
	if s == nil {
		return
	}
	s.Touch()
	h.markPresence(c.CaseID(), c.ClientID())

	mutated := false
	switch msg.Type {
	case editorInsert:
		if err := s.InsertText(msg.Offset, msg.Text); err != nil {
			logger.Warn("insert rejected: case=%s offset=%d err=%v", c.CaseID(), msg.Offset, err)
		} else {
			mutated = true
		}
	case editorNativeEdit:
		s.NativeEdit(msg.InputType, msg.Affected, msg.Content)
		mutated = true
	case editorSave:
		s.SaveManual(msg.Content)
		mutated = true
	case editorComposition:
		s.SetComposing(msg.On)
	case editorTracking:
		s.SetTracking(msg.On)
	default:
		logger.Warn("unknown editor message dropped: case=%s type=%s", c.CaseID(), msg.Type)
	}

	if mutated {
		// 다른 인스턴스는 브로커가 전파하고, 같은 인스턴스의 다른 연결은
		// 허브가 바로 밀어준다
		h.hub.SendToPeers(c, &ws.Event{Type: ws.EventContentUpdate, Payload: gin.H{
			"content": s.Content(),
		}})
	}
}

// markPresence refreshes the presence TTL for a client
func (h *WSHandler) markPresence(caseID, clientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.cache.MarkPresence(ctx, caseID, clientID); err != nil {
		logger.Warn("presence mark failed: case=%s err=%v", caseID, err)
	}
}
