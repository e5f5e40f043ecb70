package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/observability"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docqa-backend/internal/pkg/errors"
	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/openai"
	"github.com/yungbote/docqa-backend/internal/retrieval"
)

// chatHistoryLimit is how many stored messages are loaded per turn; the
// assembler renders only the most recent of them.
const chatHistoryLimit = 6

// Generator produces the assistant answer.
type Generator interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
	GenerateTextWithImages(ctx context.Context, system string, user string, images []openai.ImageInput) (string, error)
}

type ChatInput struct {
	Message string
	// Image is optional base64 image data, raw or as a data URL.
	Image string
}

type ChatReply struct {
	Question                 string    `json:"question"`
	Answer                   string    `json:"answer"`
	SessionID                uuid.UUID `json:"session_id"`
	DocumentsUsed            int       `json:"documents_used"`
	Mode                     string    `json:"mode"`
	ResponseMode             string    `json:"response_mode"`
	ProblemSolutionAreasUsed int       `json:"problem_solution_areas_used"`
	Sources                  []string  `json:"sources"`
}

type ChatService interface {
	Chat(ctx context.Context, sessionID uuid.UUID, in ChatInput) (*ChatReply, error)
	// ChatWithFile opens a new single-document session and chats in it.
	ChatWithFile(ctx context.Context, fileID uuid.UUID, message string) (*ChatReply, error)
}

type chatService struct {
	log       *logger.Logger
	files     repos.FileRepo
	sessions  SessionService
	assembler *retrieval.Assembler
	gen       Generator
}

func NewChatService(baseLog *logger.Logger, rs repos.Set, sessions SessionService, assembler *retrieval.Assembler, gen Generator) ChatService {
	return &chatService{
		log:       baseLog.With("service", "ChatService"),
		files:     rs.Files,
		sessions:  sessions,
		assembler: assembler,
		gen:       gen,
	}
}

func documentMode(n int) string {
	if n > 1 {
		return types.ModeMultiDoc
	}
	return types.ModeSingleDoc
}

func (s *chatService) Chat(ctx context.Context, sessionID uuid.UUID, in ChatInput) (*ChatReply, error) {
	ctx, span := observability.StartSpan(ctx, "chat.Chat", "session_id", sessionID.String())
	defer span.End()

	question := in.Message
	if strings.TrimSpace(question) == "" {
		return nil, apierr.BadRequest("missing_message", "Message is required")
	}
	var images []openai.ImageInput
	if in.Image != "" {
		img, err := imageInput(in.Image)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
		s.log.Debug("Chat turn carries an image", "session_id", sessionID, "chars", len(in.Image))
	}

	fileIDs, err := s.sessions.FileIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(fileIDs) == 0 {
		return nil, apierr.BadRequest("empty_session", "No documents in session")
	}

	history, err := s.sessions.History(ctx, sessionID, chatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	res, err := s.assembler.Assemble(ctx, retrieval.Request{
		Question: question,
		FileIDs:  fileIDs,
		History:  retrieval.HistoryFromMessages(history),
	})
	if err != nil {
		return nil, err
	}

	var answer string
	if len(images) > 0 {
		answer, err = s.gen.GenerateTextWithImages(ctx, res.Prompt, question, images)
	} else {
		answer, err = s.gen.GenerateText(ctx, res.Prompt, question)
	}
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "generation_failed", fmt.Errorf("generate answer: %w", err))
	}

	mode := documentMode(len(fileIDs))
	if err := s.sessions.AddTurn(ctx, sessionID, question, answer, res.Sources, mode); err != nil {
		return nil, err
	}

	s.log.Info("Chat turn answered",
		"session_id", sessionID,
		"documents", res.DocumentsUsed,
		"area_snippets", len(res.AreaSnippets),
		"general_snippets", len(res.GeneralSnippets),
	)
	return &ChatReply{
		Question:                 question,
		Answer:                   answer,
		SessionID:                sessionID,
		DocumentsUsed:            res.DocumentsUsed,
		Mode:                     mode,
		ResponseMode:             res.ResponseMode(),
		ProblemSolutionAreasUsed: len(res.AreaSnippets),
		Sources:                  res.Sources,
	}, nil
}

func (s *chatService) ChatWithFile(ctx context.Context, fileID uuid.UUID, message string) (*ChatReply, error) {
	f, err := s.files.GetByID(dbctx.Context{Ctx: ctx}, fileID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound("file_not_found", "File not found")
	}
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, []uuid.UUID{f.ID}, "Chat with "+f.Filename)
	if err != nil {
		return nil, err
	}
	return s.Chat(ctx, sess.ID, ChatInput{Message: message})
}

// imageInput accepts a data URL or bare base64 and returns a data URL with a
// sniffed content type.
func imageInput(raw string) (openai.ImageInput, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		return openai.ImageInput{ImageURL: raw, Detail: "auto"}, nil
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return openai.ImageInput{}, apierr.BadRequest("invalid_image", "Image must be base64 encoded")
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return openai.ImageInput{}, apierr.BadRequest("invalid_image", "Image data is not a supported image")
	}
	return openai.ImageInput{
		ImageURL: "data:" + mime + ";base64," + raw,
		Detail:   "auto",
	}, nil
}
