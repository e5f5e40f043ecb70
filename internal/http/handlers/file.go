package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docqa-backend/internal/http/response"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/services"
)

type FileHandler struct {
	log   *logger.Logger
	files services.FileService
}

func NewFileHandler(log *logger.Logger, files services.FileService) *FileHandler {
	return &FileHandler{log: log.With("handler", "FileHandler"), files: files}
}

// GET /files
func (h *FileHandler) ListFiles(c *gin.Context) {
	files, err := h.files.List(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, "list_files_failed", err)
		return
	}
	if files == nil {
		files = []services.FileInfo{}
	}
	response.RespondOK(c, gin.H{"files": files})
}

// GET /files/:id
func (h *FileHandler) GetFile(c *gin.Context) {
	fileID, ok := uuidParam(c, "id", "invalid_file_id")
	if !ok {
		return
	}
	info, err := h.files.Get(c.Request.Context(), fileID)
	if err != nil {
		response.RespondAPIError(c, "get_file_failed", err)
		return
	}
	response.RespondOK(c, info)
}

// GET /files/:id/pdf
func (h *FileHandler) GetPDF(c *gin.Context) {
	fileID, ok := uuidParam(c, "id", "invalid_file_id")
	if !ok {
		return
	}
	f, rc, err := h.files.OpenPDF(c.Request.Context(), fileID)
	if err != nil {
		response.RespondAPIError(c, "open_pdf_failed", err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", f.Filename),
	})
}

// DELETE /files/:id
func (h *FileHandler) DeleteFile(c *gin.Context) {
	fileID, ok := uuidParam(c, "id", "invalid_file_id")
	if !ok {
		return
	}
	if err := h.files.Delete(c.Request.Context(), fileID); err != nil {
		response.RespondAPIError(c, "delete_file_failed", err)
		return
	}
	h.log.Info("File deleted", "file_id", fileID)
	response.RespondOK(c, gin.H{"message": "File deleted successfully"})
}
