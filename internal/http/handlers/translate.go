package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docqa-backend/internal/http/response"
	"github.com/yungbote/docqa-backend/internal/services"
)

type TranslateHandler struct {
	translate services.TranslateService
}

func NewTranslateHandler(translate services.TranslateService) *TranslateHandler {
	return &TranslateHandler{translate: translate}
}

type translateReq struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

// POST /api/translate
func (h *TranslateHandler) Translate(c *gin.Context) {
	var req translateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.translate.Translate(c.Request.Context(), req.Text, req.TargetLanguage)
	if err != nil {
		response.RespondAPIError(c, "translation_failed", err)
		return
	}
	response.RespondOK(c, out)
}
