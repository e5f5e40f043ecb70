package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docqa-backend/internal/pkg/errors"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

type ChatSessionRepo interface {
	Create(dbc dbctx.Context, row *types.ChatSession) (*types.ChatSession, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatSession, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*types.ChatSession, error)
	// ListReferencing returns sessions whose file id list may contain fileID.
	// Callers must confirm membership on the decoded list.
	ListReferencing(dbc dbctx.Context, fileID string) ([]*types.ChatSession, error)
	SetFileIDs(dbc dbctx.Context, id uuid.UUID, fileIDs []string) error
	// NextSeq reserves the next message sequence number and bumps last_activity.
	NextSeq(dbc dbctx.Context, id uuid.UUID, at time.Time) (int64, error)
	Delete(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
}

type chatSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatSessionRepo(db *gorm.DB, baseLog *logger.Logger) ChatSessionRepo {
	return &chatSessionRepo{db: db, log: baseLog.With("repo", "ChatSessionRepo")}
}

func (r *chatSessionRepo) Create(dbc dbctx.Context, row *types.ChatSession) (*types.ChatSession, error) {
	if row == nil {
		return nil, fmt.Errorf("nil session")
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *chatSessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatSession, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing session id: %w", pkgerrors.ErrInvalidArgument)
	}
	var out types.ChatSession
	err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("session %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *chatSessionRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.ChatSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var out []*types.ChatSession
	if err := dbc.DB(r.db).
		Model(&types.ChatSession{}).
		Order("last_activity DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatSessionRepo) ListReferencing(dbc dbctx.Context, fileID string) ([]*types.ChatSession, error) {
	if fileID == "" {
		return []*types.ChatSession{}, nil
	}
	var out []*types.ChatSession
	if err := dbc.DB(r.db).
		Model(&types.ChatSession{}).
		Where("CAST(file_ids AS TEXT) LIKE ?", "%"+fileID+"%").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatSessionRepo) SetFileIDs(dbc dbctx.Context, id uuid.UUID, fileIDs []string) error {
	var tmp types.ChatSession
	if err := tmp.SetFileIDs(fileIDs); err != nil {
		return err
	}
	return dbc.DB(r.db).
		Model(&types.ChatSession{}).
		Where("id = ?", id).
		Update("file_ids", tmp.FileIDs).Error
}

func (r *chatSessionRepo) NextSeq(dbc dbctx.Context, id uuid.UUID, at time.Time) (int64, error) {
	txx := dbc.DB(r.db)
	res := txx.Model(&types.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"next_seq":      gorm.Expr("next_seq + 1"),
			"last_activity": at,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("session %s: %w", id, pkgerrors.ErrNotFound)
	}
	var seq int64
	if err := txx.Model(&types.ChatSession{}).
		Select("next_seq").
		Where("id = ?", id).
		Scan(&seq).Error; err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *chatSessionRepo) Delete(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.ChatSession{})
	return res.RowsAffected, res.Error
}
