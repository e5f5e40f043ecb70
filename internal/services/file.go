package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docqa-backend/internal/pkg/errors"
	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/platform/blob"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
	"github.com/yungbote/docqa-backend/internal/progress"
)

// FileInfo is a file row plus the number of vectors indexed for it.
type FileInfo struct {
	FileID      uuid.UUID `json:"file_id"`
	Filename    string    `json:"filename"`
	FileSize    int64     `json:"file_size"`
	TotalPages  int       `json:"total_pages"`
	UploadTime  time.Time `json:"upload_timestamp"`
	Status      string    `json:"status"`
	TotalChunks int       `json:"total_chunks"`
}

type FileService interface {
	// List is newest first.
	List(ctx context.Context) ([]FileInfo, error)
	Get(ctx context.Context, fileID uuid.UUID) (*FileInfo, error)
	// Require returns the file row or a 404 API error.
	Require(ctx context.Context, fileID uuid.UUID) (*types.File, error)
	OpenPDF(ctx context.Context, fileID uuid.UUID) (*types.File, io.ReadCloser, error)
	ReadPDF(ctx context.Context, f *types.File) ([]byte, error)
	// Delete removes the file with its areas, chunks and session references in
	// one transaction. Vector and blob cleanup are best effort afterwards.
	Delete(ctx context.Context, fileID uuid.UUID) error
}

type fileService struct {
	db       *gorm.DB
	log      *logger.Logger
	files    repos.FileRepo
	chunks   repos.ChunkRepo
	areas    repos.AreaRepo
	sessions SessionService
	blobs    blob.Store
	vectors  vectorstore.Store
	tracker  *progress.Tracker
}

func NewFileService(
	db *gorm.DB,
	baseLog *logger.Logger,
	rs repos.Set,
	sessions SessionService,
	blobs blob.Store,
	vectors vectorstore.Store,
	tracker *progress.Tracker,
) FileService {
	return &fileService{
		db:       db,
		log:      baseLog.With("service", "FileService"),
		files:    rs.Files,
		chunks:   rs.Chunks,
		areas:    rs.Areas,
		sessions: sessions,
		blobs:    blobs,
		vectors:  vectors,
		tracker:  tracker,
	}
}

func (fs *fileService) info(ctx context.Context, f *types.File) FileInfo {
	n, err := fs.vectors.Count(ctx, vectorstore.Eq("file_id", f.ID.String()))
	if err != nil {
		fs.log.Warn("Vector count failed; reporting zero", "file_id", f.ID, "error", err)
		n = 0
	}
	return FileInfo{
		FileID:      f.ID,
		Filename:    f.Filename,
		FileSize:    f.FileSize,
		TotalPages:  f.TotalPages,
		UploadTime:  f.UploadTime,
		Status:      f.Status,
		TotalChunks: n,
	}
}

func (fs *fileService) List(ctx context.Context) ([]FileInfo, error) {
	rows, err := fs.files.List(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(rows))
	for _, f := range rows {
		out = append(out, fs.info(ctx, f))
	}
	return out, nil
}

func (fs *fileService) Require(ctx context.Context, fileID uuid.UUID) (*types.File, error) {
	f, err := fs.files.GetByID(dbctx.Context{Ctx: ctx}, fileID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound("file_not_found", "File not found")
	}
	return f, err
}

func (fs *fileService) Get(ctx context.Context, fileID uuid.UUID) (*FileInfo, error) {
	f, err := fs.Require(ctx, fileID)
	if err != nil {
		return nil, err
	}
	info := fs.info(ctx, f)
	return &info, nil
}

func (fs *fileService) OpenPDF(ctx context.Context, fileID uuid.UUID) (*types.File, io.ReadCloser, error) {
	f, err := fs.Require(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := fs.open(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return f, rc, nil
}

func (fs *fileService) open(ctx context.Context, f *types.File) (io.ReadCloser, error) {
	key := f.BlobKey
	if key == "" {
		key = blob.PDFKey(f.ID.String())
	}
	rc, err := fs.blobs.Open(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, apierr.NotFound("pdf_not_found", "PDF file not found in storage")
	}
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return rc, nil
}

func (fs *fileService) ReadPDF(ctx context.Context, f *types.File) ([]byte, error) {
	rc, err := fs.open(ctx, f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return data, nil
}

func (fs *fileService) Delete(ctx context.Context, fileID uuid.UUID) error {
	f, err := fs.Require(ctx, fileID)
	if err != nil {
		return err
	}

	var areasDeleted, chunksDeleted int64
	var pruned, emptied int
	err = fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		if areasDeleted, err = fs.areas.DeleteByFile(dbc, fileID); err != nil {
			return fmt.Errorf("delete areas: %w", err)
		}
		if pruned, emptied, err = fs.sessions.PruneFile(dbc, fileID); err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
		if chunksDeleted, err = fs.chunks.DeleteByFile(dbc, fileID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		ok, err := fs.files.Delete(dbc, fileID)
		if err != nil {
			return fmt.Errorf("delete file: %w", err)
		}
		if !ok {
			return apierr.NotFound("file_not_found", "File not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Area vectors carry file_id too, so this clears both kinds.
	if err := fs.vectors.Delete(ctx, vectorstore.Eq("file_id", fileID.String())); err != nil {
		fs.log.Warn("Could not delete vectors", "file_id", fileID, "error", err)
	}
	if f.BlobKey != "" {
		if err := fs.blobs.Delete(ctx, f.BlobKey); err != nil {
			fs.log.Warn("Could not delete pdf blob", "file_id", fileID, "key", f.BlobKey, "error", err)
		}
	}
	fs.tracker.Delete(fileID.String())

	fs.log.Info("File deleted",
		"file_id", fileID,
		"areas", areasDeleted,
		"chunks", chunksDeleted,
		"sessions_pruned", pruned,
		"sessions_deleted", emptied,
	)
	return nil
}
