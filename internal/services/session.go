package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docqa-backend/internal/pkg/errors"
	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

const defaultSessionListLimit = 20

// SessionSummary is the list view of a session.
type SessionSummary struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	FileIDs      []string  `json:"file_ids"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

type SessionService interface {
	// Create verifies every file exists. An empty name gets a default derived
	// from the number of files.
	Create(ctx context.Context, fileIDs []uuid.UUID, name string) (*types.ChatSession, error)
	List(ctx context.Context, limit int) ([]SessionSummary, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error)
	// FileIDs returns the session's files in creation order.
	FileIDs(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
	AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string, sources []string, mode string) (*types.ChatMessage, error)
	// AddTurn stores a question and its answer together; neither is kept
	// unless both are.
	AddTurn(ctx context.Context, sessionID uuid.UUID, question, answer string, sources []string, mode string) error
	// History returns up to limit of the most recent messages, oldest first.
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*types.ChatMessage, error)
	Messages(ctx context.Context, sessionID uuid.UUID) ([]*types.ChatMessage, error)
	Delete(ctx context.Context, sessionID uuid.UUID) (bool, error)
	// PruneFile drops fileID from every session. Sessions left with no files
	// are deleted with their messages. It joins dbc.Tx when one is set.
	PruneFile(dbc dbctx.Context, fileID uuid.UUID) (pruned int, deleted int, err error)
}

type sessionService struct {
	db       *gorm.DB
	log      *logger.Logger
	files    repos.FileRepo
	sessions repos.ChatSessionRepo
	messages repos.ChatMessageRepo
	now      func() time.Time
}

func NewSessionService(db *gorm.DB, baseLog *logger.Logger, rs repos.Set) SessionService {
	return &sessionService{
		db:       db,
		log:      baseLog.With("service", "SessionService"),
		files:    rs.Files,
		sessions: rs.Sessions,
		messages: rs.Messages,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func defaultSessionName(n int) string {
	if n == 1 {
		return "Chat with document"
	}
	return fmt.Sprintf("Multi-doc chat (%d documents)", n)
}

func (s *sessionService) Create(ctx context.Context, fileIDs []uuid.UUID, name string) (*types.ChatSession, error) {
	if len(fileIDs) == 0 {
		return nil, apierr.BadRequest("missing_file_ids", "At least one file_id is required")
	}
	dbc := dbctx.Context{Ctx: ctx}
	found, err := s.files.GetByIDs(dbc, fileIDs)
	if err != nil {
		return nil, err
	}
	have := make(map[uuid.UUID]bool, len(found))
	for _, f := range found {
		have[f.ID] = true
	}
	ids := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		if !have[id] {
			return nil, apierr.NotFound("file_not_found", fmt.Sprintf("File %s not found", id))
		}
		ids = append(ids, id.String())
	}
	if name == "" {
		name = defaultSessionName(len(fileIDs))
	}

	row := &types.ChatSession{Name: name}
	if err := row.SetFileIDs(ids); err != nil {
		return nil, err
	}
	out, err := s.sessions.Create(dbc, row)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("Chat session created", "session_id", out.ID, "files", len(ids))
	return out, nil
}

func (s *sessionService) List(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = defaultSessionListLimit
	}
	rows, err := s.sessions.ListRecent(dbctx.Context{Ctx: ctx}, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(rows))
	for _, r := range rows {
		ids, err := r.FileIDList()
		if err != nil {
			s.log.Warn("Skipping session with undecodable file ids", "session_id", r.ID, "error", err)
			continue
		}
		if ids == nil {
			ids = []string{}
		}
		out = append(out, SessionSummary{
			ID:           r.ID,
			Name:         r.Name,
			FileIDs:      ids,
			CreatedAt:    r.CreatedAt,
			LastActivity: r.LastActivity,
		})
	}
	return out, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error) {
	row, err := s.sessions.GetByID(dbctx.Context{Ctx: ctx}, sessionID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound("session_not_found", "Session not found")
	}
	return row, err
}

func (s *sessionService) FileIDs(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	row, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return parseSessionFileIDs(row)
}

func parseSessionFileIDs(row *types.ChatSession) ([]uuid.UUID, error) {
	raw, err := row.FileIDList()
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("session %s has invalid file id %q: %w", row.ID, s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *sessionService) AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string, sources []string, mode string) (*types.ChatMessage, error) {
	var out *types.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.addMessage(dbctx.Context{Ctx: ctx, Tx: tx}, sessionID, role, content, sources, mode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sessionService) AddTurn(ctx context.Context, sessionID uuid.UUID, question, answer string, sources []string, mode string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.addMessage(dbc, sessionID, types.RoleUser, question, nil, ""); err != nil {
			return fmt.Errorf("store question: %w", err)
		}
		if _, err := s.addMessage(dbc, sessionID, types.RoleAssistant, answer, sources, mode); err != nil {
			return fmt.Errorf("store answer: %w", err)
		}
		return nil
	})
}

func (s *sessionService) addMessage(dbc dbctx.Context, sessionID uuid.UUID, role, content string, sources []string, mode string) (*types.ChatMessage, error) {
	at := s.now()
	seq, err := s.sessions.NextSeq(dbc, sessionID, at)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound("session_not_found", "Session not found")
	}
	if err != nil {
		return nil, err
	}
	return s.messages.Create(dbc, &types.ChatMessage{
		SessionID:    sessionID,
		Seq:          seq,
		Role:         role,
		Content:      content,
		Sources:      types.EncodeSources(sources),
		DocumentMode: mode,
		CreatedAt:    at,
	})
}

func (s *sessionService) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	return s.messages.ListRecent(dbctx.Context{Ctx: ctx}, sessionID, limit)
}

func (s *sessionService) Messages(ctx context.Context, sessionID uuid.UUID) ([]*types.ChatMessage, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.messages.ListBySession(dbctx.Context{Ctx: ctx}, sessionID)
}

func (s *sessionService) Delete(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.messages.DeleteBySessions(dbc, []uuid.UUID{sessionID}); err != nil {
			return err
		}
		var err error
		n, err = s.sessions.Delete(dbc, []uuid.UUID{sessionID})
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sessionService) PruneFile(dbc dbctx.Context, fileID uuid.UUID) (int, int, error) {
	if dbc.Tx == nil {
		var pruned, deleted int
		err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			pruned, deleted, err = s.PruneFile(dbctx.Context{Ctx: dbc.Ctx, Tx: tx}, fileID)
			return err
		})
		return pruned, deleted, err
	}

	target := fileID.String()
	rows, err := s.sessions.ListReferencing(dbc, target)
	if err != nil {
		return 0, 0, err
	}
	var emptied []uuid.UUID
	pruned := 0
	for _, r := range rows {
		ids, err := r.FileIDList()
		if err != nil {
			return 0, 0, err
		}
		if !slices.Contains(ids, target) {
			continue
		}
		kept := slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == target })
		if len(kept) == 0 {
			emptied = append(emptied, r.ID)
			continue
		}
		if err := s.sessions.SetFileIDs(dbc, r.ID, kept); err != nil {
			return 0, 0, fmt.Errorf("prune session %s: %w", r.ID, err)
		}
		pruned++
	}
	if len(emptied) > 0 {
		if _, err := s.messages.DeleteBySessions(dbc, emptied); err != nil {
			return 0, 0, fmt.Errorf("delete messages of emptied sessions: %w", err)
		}
		if _, err := s.sessions.Delete(dbc, emptied); err != nil {
			return 0, 0, fmt.Errorf("delete emptied sessions: %w", err)
		}
	}
	return pruned, len(emptied), nil
}
