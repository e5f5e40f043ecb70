package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/docqa-backend/internal/domain"
)

func SeedFile(tb testing.TB, ctx context.Context, tx *gorm.DB, name, status string) *types.File {
	tb.Helper()
	f := &types.File{
		Filename:   name,
		FileSize:   1024,
		TotalPages: 3,
		Status:     status,
		BlobKey:    "pdfs/" + name,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed file: %v", err)
	}
	return f
}

func SeedChunks(tb testing.TB, ctx context.Context, tx *gorm.DB, f *types.File, texts ...string) []*types.DocumentChunk {
	tb.Helper()
	out := make([]*types.DocumentChunk, 0, len(texts))
	for i, t := range texts {
		c := &types.DocumentChunk{FileID: f.ID, ChunkIndex: i, Content: t}
		if err := tx.WithContext(ctx).Create(c).Error; err != nil {
			tb.Fatalf("seed chunk %d: %v", i, err)
		}
		out = append(out, c)
	}
	return out
}

func SeedArea(tb testing.TB, ctx context.Context, tx *gorm.DB, f *types.File, kind types.AreaType, content string) *types.DocumentArea {
	tb.Helper()
	a := &types.DocumentArea{
		FileID:      f.ID,
		PageNumber:  1,
		AreaType:    kind,
		Coordinates: types.Coordinates{X: 10, Y: 20, Width: 200, Height: 100},
		Content:     content,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed area: %v", err)
	}
	return a
}
