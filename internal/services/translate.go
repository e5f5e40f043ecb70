package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

const defaultTargetLanguage = "Korean"

type Translation struct {
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	TargetLanguage string `json:"target_language"`
}

type TranslateService interface {
	Translate(ctx context.Context, text, targetLanguage string) (*Translation, error)
}

type translateService struct {
	log *logger.Logger
	gen Generator
}

func NewTranslateService(baseLog *logger.Logger, gen Generator) TranslateService {
	return &translateService{log: baseLog.With("service", "TranslateService"), gen: gen}
}

func (s *translateService) Translate(ctx context.Context, text, targetLanguage string) (*Translation, error) {
	if text == "" {
		return nil, apierr.BadRequest("missing_text", "Text to translate is required")
	}
	if strings.TrimSpace(targetLanguage) == "" {
		targetLanguage = defaultTargetLanguage
	}
	prompt := fmt.Sprintf("Translate the following text into %s:\n\n%s", targetLanguage, text)
	out, err := s.gen.GenerateText(ctx, "", prompt)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "translation_failed", fmt.Errorf("Translation failed: %w", err))
	}
	return &Translation{OriginalText: text, TranslatedText: out, TargetLanguage: targetLanguage}, nil
}
