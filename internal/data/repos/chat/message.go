package chat

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

type ChatMessageRepo interface {
	Create(dbc dbctx.Context, row *types.ChatMessage) (*types.ChatMessage, error)
	// ListRecent returns the newest limit messages, oldest first.
	ListRecent(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*types.ChatMessage, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ChatMessage, error)
	DeleteBySessions(dbc dbctx.Context, sessionIDs []uuid.UUID) (int64, error)
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: baseLog.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) Create(dbc dbctx.Context, row *types.ChatMessage) (*types.ChatMessage, error) {
	if row == nil || row.SessionID == uuid.Nil {
		return nil, fmt.Errorf("message without session")
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *chatMessageRepo) ListRecent(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	if limit <= 0 {
		return []*types.ChatMessage{}, nil
	}
	var out []*types.ChatMessage
	if err := dbc.DB(r.db).
		Model(&types.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Order("seq DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	// Normalize to ASC for clients.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *chatMessageRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ChatMessage, error) {
	var out []*types.ChatMessage
	if err := dbc.DB(r.db).
		Model(&types.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatMessageRepo) DeleteBySessions(dbc dbctx.Context, sessionIDs []uuid.UUID) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("session_id IN ?", sessionIDs).Delete(&types.ChatMessage{})
	return res.RowsAffected, res.Error
}
