package documents

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

type ChunkRepo interface {
	// ReplaceForFile deletes every stored chunk of the file and inserts texts
	// as chunks 0..n-1.
	ReplaceForFile(dbc dbctx.Context, fileID uuid.UUID, texts []string) ([]*types.DocumentChunk, error)
	ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.DocumentChunk, error)
	SearchKeywords(dbc dbctx.Context, fileID uuid.UUID, query string, limit int) ([]*types.DocumentChunk, error)
	CountByFile(dbc dbctx.Context, fileID uuid.UUID) (int64, error)
	DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) (int64, error)
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	return &chunkRepo{db: db, log: baseLog.With("repo", "ChunkRepo")}
}

func (r *chunkRepo) ReplaceForFile(dbc dbctx.Context, fileID uuid.UUID, texts []string) ([]*types.DocumentChunk, error) {
	if fileID == uuid.Nil {
		return nil, fmt.Errorf("missing file id")
	}
	rows := make([]*types.DocumentChunk, 0, len(texts))
	for i, t := range texts {
		rows = append(rows, &types.DocumentChunk{FileID: fileID, ChunkIndex: i, Content: t})
	}
	replace := func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&types.DocumentChunk{}).Error; err != nil {
			return fmt.Errorf("delete old chunks: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		return nil
	}
	if dbc.Tx != nil {
		if err := replace(dbc.DB(r.db)); err != nil {
			return nil, err
		}
		return rows, nil
	}
	if err := dbc.DB(r.db).Transaction(replace); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *chunkRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.DocumentChunk, error) {
	var out []*types.DocumentChunk
	if err := dbc.DB(r.db).
		Model(&types.DocumentChunk{}).
		Where("file_id = ?", fileID).
		Order("chunk_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SearchKeywords returns chunks containing any whitespace-separated word of
// query, case-insensitively, in chunk order.
func (r *chunkRepo) SearchKeywords(dbc dbctx.Context, fileID uuid.UUID, query string, limit int) ([]*types.DocumentChunk, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return []*types.DocumentChunk{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	conds := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords))
	for _, kw := range keywords {
		conds = append(conds, "LOWER(content) LIKE ? ESCAPE '!'")
		args = append(args, "%"+escapeLike(kw)+"%")
	}

	var out []*types.DocumentChunk
	if err := dbc.DB(r.db).
		Model(&types.DocumentChunk{}).
		Where("file_id = ?", fileID).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Order("chunk_index ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkRepo) CountByFile(dbc dbctx.Context, fileID uuid.UUID) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.DocumentChunk{}).Where("file_id = ?", fileID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *chunkRepo) DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("file_id = ?", fileID).Delete(&types.DocumentChunk{})
	return res.RowsAffected, res.Error
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }
