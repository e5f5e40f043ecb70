package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/http/response"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/services"
)

type AreaHandler struct {
	log   *logger.Logger
	areas services.AreaService
}

func NewAreaHandler(log *logger.Logger, areas services.AreaService) *AreaHandler {
	return &AreaHandler{log: log.With("handler", "AreaHandler"), areas: areas}
}

type addAreaReq struct {
	AreaType    string             `json:"area_type"`
	PageNumber  int                `json:"page_number"`
	Coordinates *types.Coordinates `json:"coordinates"`
	Content     string             `json:"content"`
}

// POST /files/:id/areas
func (h *AreaHandler) AddArea(c *gin.Context) {
	fileID, ok := uuidParam(c, "id", "invalid_file_id")
	if !ok {
		return
	}
	var req addAreaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	area, err := h.areas.Add(c.Request.Context(), fileID, services.AreaInput{
		AreaType:    req.AreaType,
		PageNumber:  req.PageNumber,
		Coordinates: req.Coordinates,
		Content:     req.Content,
	})
	if err != nil {
		response.RespondAPIError(c, "add_area_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"area_id":     area.ID,
		"file_id":     area.FileID,
		"area_type":   area.AreaType,
		"page_number": area.PageNumber,
		"coordinates": area.Coordinates,
		"content":     area.Content,
		"message":     fmt.Sprintf("Successfully added %s area", area.AreaType),
	})
}

// GET /files/:id/areas?area_type=problem
func (h *AreaHandler) ListAreas(c *gin.Context) {
	fileID, ok := uuidParam(c, "id", "invalid_file_id")
	if !ok {
		return
	}
	areas, err := h.areas.List(c.Request.Context(), fileID, c.Query("area_type"))
	if err != nil {
		response.RespondAPIError(c, "list_areas_failed", err)
		return
	}
	if areas == nil {
		areas = []*types.DocumentArea{}
	}
	response.RespondOK(c, gin.H{"file_id": fileID, "areas": areas, "total_areas": len(areas)})
}

// DELETE /files/:id/areas/:area_id
func (h *AreaHandler) DeleteArea(c *gin.Context) {
	fileID, ok := uuidParam(c, "id", "invalid_file_id")
	if !ok {
		return
	}
	areaID, ok := uuidParam(c, "area_id", "invalid_area_id")
	if !ok {
		return
	}
	if err := h.areas.Delete(c.Request.Context(), fileID, areaID); err != nil {
		response.RespondAPIError(c, "delete_area_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Area deleted successfully"})
}

type extractAreaReq struct {
	PageNumber  int                `json:"page_number"`
	Coordinates *types.Coordinates `json:"coordinates"`
}

// POST /files/:id/extract-area
func (h *AreaHandler) ExtractArea(c *gin.Context) {
	fileID, ok := uuidParam(c, "id", "invalid_file_id")
	if !ok {
		return
	}
	var req extractAreaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.PageNumber < 1 {
		req.PageNumber = 1
	}
	text, err := h.areas.ExtractText(c.Request.Context(), fileID, req.PageNumber, req.Coordinates)
	if err != nil {
		response.RespondAPIError(c, "extract_area_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"success":     true,
		"text":        text,
		"page_number": req.PageNumber,
		"coordinates": req.Coordinates,
	})
}
