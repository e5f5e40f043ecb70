package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docqa-backend/internal/http/response"
	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/progress"
	"github.com/yungbote/docqa-backend/internal/realtime"
)

// ProgressSource is the read side of the progress tracker.
type ProgressSource interface {
	Snapshot(fileID string) (progress.Snapshot, bool)
}

// RemoteProgress returns the last progress payload published by any
// instance for a file.
type RemoteProgress interface {
	LastProgress(fileID string) (any, bool)
}

type ProgressHandler struct {
	log     *logger.Logger
	tracker ProgressSource
	remote  RemoteProgress
	hub     *realtime.SSEHub
}

func NewProgressHandler(log *logger.Logger, tracker ProgressSource, hub *realtime.SSEHub) *ProgressHandler {
	return &ProgressHandler{log: log.With("handler", "ProgressHandler"), tracker: tracker, hub: hub}
}

// WithRemote lets the handler answer for uploads running on other instances.
func (h *ProgressHandler) WithRemote(r RemoteProgress) *ProgressHandler {
	h.remote = r
	return h
}

// current prefers the local tracker and falls back to the remote cache.
func (h *ProgressHandler) current(fileID string) (any, bool) {
	if snap, ok := h.tracker.Snapshot(fileID); ok {
		return snap, true
	}
	if h.remote != nil {
		return h.remote.LastProgress(fileID)
	}
	return nil, false
}

func progressNotFound() error {
	return apierr.NotFound("progress_not_found", "Progress not found")
}

// GET /progress/:id
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	snap, ok := h.current(strings.TrimSpace(c.Param("id")))
	if !ok {
		response.RespondAPIError(c, "progress_failed", progressNotFound())
		return
	}
	response.RespondOK(c, snap)
}

// GET /progress/:id/stream
//
// Streams snapshots as "progress" events, starting with the current one, and
// ends after a completed or failed snapshot.
func (h *ProgressHandler) StreamProgress(c *gin.Context) {
	fileID := strings.TrimSpace(c.Param("id"))
	if h.hub == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "streaming_unavailable", nil)
		return
	}

	// Subscribe before reading the snapshot so no transition is missed.
	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, realtime.ProgressChannel(fileID))
	defer h.hub.CloseClient(client)

	snap, ok := h.current(fileID)
	if !ok {
		response.RespondAPIError(c, "progress_failed", progressNotFound())
		return
	}
	select {
	case client.Outbound <- realtime.SSEMessage{
		Channel: realtime.ProgressChannel(fileID),
		Event:   realtime.SSEEventProgress,
		Data:    snap,
	}:
	default:
	}

	h.log.Debug("Progress stream open", "file_id", fileID, "client_id", client.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, client, realtime.IsTerminalProgress)
	h.log.Debug("Progress stream closed", "file_id", fileID, "client_id", client.ID)
}
