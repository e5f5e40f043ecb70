package documents

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docqa-backend/internal/pkg/errors"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

type AreaRepo interface {
	Create(dbc dbctx.Context, row *types.DocumentArea) (*types.DocumentArea, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentArea, error)
	// ListByFile returns areas in insertion order. A nil areaType lists both kinds.
	ListByFile(dbc dbctx.Context, fileID uuid.UUID, areaType *types.AreaType) ([]*types.DocumentArea, error)
	UpdateContent(dbc dbctx.Context, id uuid.UUID, content string) error
	// DeleteForFile deletes the area only when it belongs to fileID.
	DeleteForFile(dbc dbctx.Context, id, fileID uuid.UUID) (bool, error)
	DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) (int64, error)
}

type areaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAreaRepo(db *gorm.DB, baseLog *logger.Logger) AreaRepo {
	return &areaRepo{db: db, log: baseLog.With("repo", "AreaRepo")}
}

func (r *areaRepo) Create(dbc dbctx.Context, row *types.DocumentArea) (*types.DocumentArea, error) {
	if row == nil || row.FileID == uuid.Nil {
		return nil, fmt.Errorf("area without file: %w", pkgerrors.ErrInvalidArgument)
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *areaRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DocumentArea, error) {
	var out types.DocumentArea
	err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("area %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *areaRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID, areaType *types.AreaType) ([]*types.DocumentArea, error) {
	q := dbc.DB(r.db).Model(&types.DocumentArea{}).Where("file_id = ?", fileID)
	if areaType != nil {
		q = q.Where("area_type = ?", string(*areaType))
	}
	var out []*types.DocumentArea
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *areaRepo) UpdateContent(dbc dbctx.Context, id uuid.UUID, content string) error {
	res := dbc.DB(r.db).Model(&types.DocumentArea{}).Where("id = ?", id).Update("content", content)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("area %s: %w", id, pkgerrors.ErrNotFound)
	}
	return nil
}

func (r *areaRepo) DeleteForFile(dbc dbctx.Context, id, fileID uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ? AND file_id = ?", id, fileID).Delete(&types.DocumentArea{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *areaRepo) DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("file_id = ?", fileID).Delete(&types.DocumentArea{})
	return res.RowsAffected, res.Error
}
