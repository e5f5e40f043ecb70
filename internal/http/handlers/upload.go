package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docqa-backend/internal/http/response"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/services"
)

type UploadHandler struct {
	log    *logger.Logger
	ingest services.IngestService
	// maxBytes bounds how much of an upload is read. One extra byte is read so
	// the service can still reject oversized files.
	maxBytes int64
}

func NewUploadHandler(log *logger.Logger, ingest services.IngestService, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = services.DefaultIngestConfig().MaxFileSize
	}
	return &UploadHandler{log: log.With("handler", "UploadHandler"), ingest: ingest, maxBytes: maxBytes}
}

type uploadFunc func(ctx context.Context, filename string, data []byte) (*services.UploadResult, error)

// POST /upload-pdf-fast
func (h *UploadHandler) UploadFast(c *gin.Context) {
	h.upload(c, h.ingest.UploadFast)
}

// POST /upload-pdf
func (h *UploadHandler) Upload(c *gin.Context) {
	h.upload(c, h.ingest.Upload)
}

func (h *UploadHandler) upload(c *gin.Context, run uploadFunc) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}

	res, err := run(c.Request.Context(), fh.Filename, data)
	if err != nil {
		response.RespondAPIError(c, "upload_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /files/:id/embed
func (h *UploadHandler) Embed(c *gin.Context) {
	fileID, ok := uuidParam(c, "id", "invalid_file_id")
	if !ok {
		return
	}
	if err := h.ingest.StartEmbed(c.Request.Context(), fileID); err != nil {
		response.RespondAPIError(c, "embed_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"file_id": fileID,
		"status":  "embedding",
		"message": "Embedding started",
	})
}
