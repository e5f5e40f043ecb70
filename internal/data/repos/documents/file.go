package documents

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

type FileRepo interface {
	Create(dbc dbctx.Context, row *types.File) (*types.File, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.File, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.File, error)
	List(dbc dbctx.Context) ([]*types.File, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type fileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileRepo(db *gorm.DB, baseLog *logger.Logger) FileRepo {
	return &fileRepo{db: db, log: baseLog.With("repo", "FileRepo")}
}

func (r *fileRepo) Create(dbc dbctx.Context, row *types.File) (*types.File, error) {
	if row == nil {
		return nil, fmt.Errorf("nil file")
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// GetByID wraps pkgerrors.ErrNotFound when the row does not exist.
func (r *fileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.File, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing file id: %w", pkgerrors.ErrInvalidArgument)
	}
	var out types.File
	err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("file %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByIDs returns the rows that exist, in no particular order.
func (r *fileRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.File, error) {
	if len(ids) == 0 {
		return []*types.File{}, nil
	}
	var out []*types.File
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fileRepo) List(dbc dbctx.Context) ([]*types.File, error) {
	var out []*types.File
	if err := dbc.DB(r.db).
		Model(&types.File{}).
		Order("upload_time DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fileRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	return r.UpdateFields(dbc, id, map[string]any{"status": status})
}

func (r *fileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing file id: %w", pkgerrors.ErrInvalidArgument)
	}
	if updates == nil {
		updates = map[string]any{}
	}
	updates["updated_at"] = time.Now().UTC()
	res := dbc.DB(r.db).Model(&types.File{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("file %s: %w", id, pkgerrors.ErrNotFound)
	}
	return nil
}

func (r *fileRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.File{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
