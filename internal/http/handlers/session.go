package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/http/response"
	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	sessions services.SessionService
	chat     services.ChatService
}

func NewSessionHandler(log *logger.Logger, sessions services.SessionService, chat services.ChatService) *SessionHandler {
	return &SessionHandler{log: log.With("handler", "SessionHandler"), sessions: sessions, chat: chat}
}

type createSessionReq struct {
	FileIDs []string `json:"file_ids"`
	Name    string   `json:"name"`
}

// POST /sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ids := make([]uuid.UUID, 0, len(req.FileIDs))
	for _, raw := range req.FileIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_file_id", fmt.Errorf("invalid file_id %q", raw))
			return
		}
		ids = append(ids, id)
	}
	sess, err := h.sessions.Create(c.Request.Context(), ids, req.Name)
	if err != nil {
		response.RespondAPIError(c, "create_session_failed", err)
		return
	}
	fileIDs, _ := sess.FileIDList()
	response.RespondOK(c, gin.H{
		"session_id": sess.ID,
		"file_ids":   fileIDs,
		"name":       sess.Name,
		"message":    fmt.Sprintf("Chat session created for %d document(s)", len(fileIDs)),
	})
}

// GET /sessions?limit=20
func (h *SessionHandler) ListSessions(c *gin.Context) {
	limit := 0
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sessions, err := h.sessions.List(c.Request.Context(), limit)
	if err != nil {
		response.RespondAPIError(c, "list_sessions_failed", err)
		return
	}
	if sessions == nil {
		sessions = []services.SessionSummary{}
	}
	response.RespondOK(c, gin.H{"sessions": sessions})
}

// GET /sessions/:id/messages
func (h *SessionHandler) ListMessages(c *gin.Context) {
	sessionID, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	msgs, err := h.sessions.Messages(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondAPIError(c, "list_messages_failed", err)
		return
	}
	if msgs == nil {
		msgs = []*types.ChatMessage{}
	}
	response.RespondOK(c, gin.H{"session_id": sessionID, "messages": msgs})
}

// DELETE /sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sessionID, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	deleted, err := h.sessions.Delete(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondAPIError(c, "delete_session_failed", err)
		return
	}
	if !deleted {
		response.RespondAPIError(c, "delete_session_failed", apierr.NotFound("session_not_found", "Session not found"))
		return
	}
	response.RespondOK(c, gin.H{"message": "Session deleted successfully"})
}

type chatReq struct {
	Message string `json:"message"`
	Image   string `json:"image"`
}

// POST /sessions/:id/chat
func (h *SessionHandler) Chat(c *gin.Context) {
	sessionID, ok := uuidParam(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Image != "" {
		h.log.Debug("Chat request carries an image", "session_id", sessionID, "image_chars", len(req.Image))
	}
	reply, err := h.chat.Chat(c.Request.Context(), sessionID, services.ChatInput{Message: req.Message, Image: req.Image})
	if err != nil {
		response.RespondAPIError(c, "chat_failed", err)
		return
	}
	response.RespondOK(c, reply)
}

// POST /chat/:file_id
func (h *SessionHandler) ChatWithFile(c *gin.Context) {
	fileID, ok := uuidParam(c, "file_id", "invalid_file_id")
	if !ok {
		return
	}
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	reply, err := h.chat.ChatWithFile(c.Request.Context(), fileID, req.Message)
	if err != nil {
		response.RespondAPIError(c, "chat_failed", err)
		return
	}
	response.RespondOK(c, reply)
}
