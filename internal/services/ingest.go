package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/ingestion/chunker"
	"github.com/yungbote/docqa-backend/internal/ingestion/extractor"
	"github.com/yungbote/docqa-backend/internal/observability"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/docqa-backend/internal/pkg/errors"
	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/platform/blob"
	"github.com/yungbote/docqa-backend/internal/platform/ctxutil"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
	"github.com/yungbote/docqa-backend/internal/progress"
	"github.com/yungbote/docqa-backend/internal/retrieval"
)

const (
	pipelineFast  = "fast"
	pipelineFull  = "full"
	pipelineEmbed = "embed"

	embedFailedWarning = "Embeddings failed - check API key. You can still view the document but chat won't work."
	fastUploadMessage  = "Ready for basic chat! Embeddings can be generated later for enhanced search."
)

type IngestConfig struct {
	MaxFileSize     int64
	ChunkSize       int
	ChunkOverlap    int
	EmbedBatchSize  int
	EmbedBatchPause time.Duration
	ProgressCleanup time.Duration
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		MaxFileSize:     50 * 1024 * 1024,
		ChunkSize:       chunker.DefaultSize,
		ChunkOverlap:    chunker.DefaultOverlap,
		EmbedBatchSize:  5,
		EmbedBatchPause: 100 * time.Millisecond,
		ProgressCleanup: 300 * time.Second,
	}
}

type UploadResult struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	TotalPages  int    `json:"total_pages"`
	TotalChunks int    `json:"total_chunks"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	Warning     string `json:"warning,omitempty"`
}

type IngestService interface {
	// UploadFast extracts and chunks the PDF without embedding it.
	UploadFast(ctx context.Context, filename string, data []byte) (*UploadResult, error)
	// Upload runs the tracked pipeline through embedding. An embedding failure
	// is reported as a degraded success with Warning set.
	Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error)
	// StartEmbed validates fileID and embeds its stored chunks in the background.
	StartEmbed(ctx context.Context, fileID uuid.UUID) error
	// Embed is the synchronous form of StartEmbed.
	Embed(ctx context.Context, fileID uuid.UUID) error
}

type ingestService struct {
	log       *logger.Logger
	files     repos.FileRepo
	chunks    repos.ChunkRepo
	blobs     blob.Store
	extractor extractor.Extractor
	embedder  retrieval.Embedder
	vectors   vectorstore.Store
	tracker   *progress.Tracker
	chunker   chunker.Chunker
	cfg       IngestConfig
}

func NewIngestService(
	baseLog *logger.Logger,
	rs repos.Set,
	blobs blob.Store,
	ex extractor.Extractor,
	embedder retrieval.Embedder,
	vectors vectorstore.Store,
	tracker *progress.Tracker,
	cfg IngestConfig,
) IngestService {
	def := DefaultIngestConfig()
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = def.MaxFileSize
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = def.EmbedBatchSize
	}
	if cfg.ProgressCleanup <= 0 {
		cfg.ProgressCleanup = def.ProgressCleanup
	}
	return &ingestService{
		log:       baseLog.With("service", "IngestService"),
		files:     rs.Files,
		chunks:    rs.Chunks,
		blobs:     blobs,
		extractor: ex,
		embedder:  embedder,
		vectors:   vectors,
		tracker:   tracker,
		chunker:   chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:       cfg,
	}
}

func (s *ingestService) validate(filename string, data []byte) error {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return apierr.BadRequest("invalid_file_type", "Only PDF files are allowed")
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return apierr.BadRequest("file_too_large", "File too large")
	}
	return nil
}

func (s *ingestService) extract(data []byte) (*extractor.Document, error) {
	doc, err := s.extractor.Extract(data)
	if errors.Is(err, extractor.ErrNotPDF) {
		return nil, apierr.BadRequest("invalid_pdf", "File is not a readable PDF")
	}
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	return doc, nil
}

// store writes the blob, the file row and its chunks. The row starts at
// processing and is left there on error so callers can mark it failed.
func (s *ingestService) store(ctx context.Context, id uuid.UUID, filename string, data []byte, doc *extractor.Document, chunks []string) (*types.File, error) {
	key := blob.PDFKey(id.String())
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("store pdf: %w", err)
	}
	f, err := s.files.Create(dbctx.Context{Ctx: ctx}, &types.File{
		ID:         id,
		Filename:   filename,
		FileSize:   int64(len(data)),
		TotalPages: doc.TotalPages,
		Status:     types.FileStatusProcessing,
		BlobKey:    key,
	})
	if err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}
	if _, err := s.chunks.ReplaceForFile(dbctx.Context{Ctx: ctx}, id, chunks); err != nil {
		return f, fmt.Errorf("store chunks: %w", err)
	}
	return f, nil
}

func (s *ingestService) UploadFast(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	ctx, span := observability.StartSpan(ctx, "ingest.UploadFast", "filename", filename)
	defer span.End()
	if err := s.validate(filename, data); err != nil {
		return nil, err
	}
	s.log.Info("Starting fast PDF upload", "filename", filename, "bytes", len(data))

	id := uuid.New()
	start := time.Now()
	doc, err := s.extract(data)
	s.observe(pipelineFast, "extract", err, start)
	if err != nil {
		observability.Current().IncIngestResult(pipelineFast, "failed")
		return nil, err
	}

	chunks := s.chunker.Split(doc.Text)
	ctx = ctxutil.Detach(ctx)
	start = time.Now()
	f, err := s.store(ctx, id, filename, data, doc, chunks)
	s.observe(pipelineFast, "store", err, start)
	if err != nil {
		s.markFailed(ctx, f)
		observability.Current().IncIngestResult(pipelineFast, "failed")
		return nil, err
	}
	if err := s.files.UpdateStatus(dbctx.Context{Ctx: ctx}, id, types.FileStatusTextExtracted); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	observability.Current().IncIngestResult(pipelineFast, types.FileStatusTextExtracted)
	s.log.Info("Fast processing complete", "file_id", id, "pages", doc.TotalPages, "chunks", len(chunks))
	return &UploadResult{
		FileID:      id.String(),
		Filename:    filename,
		TotalPages:  doc.TotalPages,
		TotalChunks: len(chunks),
		Status:      types.FileStatusTextExtracted,
		Message:     fastUploadMessage,
	}, nil
}

func (s *ingestService) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	ctx, span := observability.StartSpan(ctx, "ingest.Upload", "filename", filename)
	defer span.End()
	if err := s.validate(filename, data); err != nil {
		return nil, err
	}

	id := uuid.New()
	fid := id.String()
	s.tracker.Start(fid, filename, 0)
	defer s.tracker.ScheduleCleanup(fid, s.cfg.ProgressCleanup)
	s.log.Info("Starting PDF upload", "file_id", fid, "filename", filename, "bytes", len(data))
	// Once accepted, the upload runs to a final file status even if the
	// client goes away.
	ctx = ctxutil.Detach(ctx)

	fail := func(f *types.File, err error) (*UploadResult, error) {
		s.tracker.Fail(fid, err)
		s.markFailed(ctx, f)
		observability.Current().IncIngestResult(pipelineFull, "failed")
		return nil, err
	}

	s.tracker.Advance(fid, progress.StageExtractingText, "Extracting text from PDF...", nil, nil)
	start := time.Now()
	doc, err := s.extract(data)
	s.observe(pipelineFull, "extract", err, start)
	if err != nil {
		return fail(nil, err)
	}
	s.tracker.Advance(fid, progress.StageExtractingText,
		fmt.Sprintf("Extracted %d pages successfully", doc.TotalPages), nil,
		map[string]any{"total_pages": doc.TotalPages})

	s.tracker.Advance(fid, progress.StageChunkingText, "Breaking text into chunks...", nil, nil)
	chunks := s.chunker.Split(doc.Text)
	start = time.Now()
	f, err := s.store(ctx, id, filename, data, doc, chunks)
	s.observe(pipelineFull, "store", err, start)
	if err != nil {
		return fail(f, err)
	}
	s.tracker.Advance(fid, progress.StageChunkingText,
		fmt.Sprintf("Created %d text chunks", len(chunks)), nil,
		map[string]any{"total_chunks": len(chunks)})

	res := &UploadResult{
		FileID:      fid,
		Filename:    filename,
		TotalPages:  doc.TotalPages,
		TotalChunks: len(chunks),
	}

	if err := s.embedAndStore(ctx, f, chunks, pipelineFull); err != nil {
		s.log.Error("Embedding failed; file left at text_extracted", "file_id", fid, "error", err)
		s.tracker.Fail(fid, fmt.Errorf("embedding failed: %w", err))
		if uerr := s.files.UpdateStatus(dbctx.Context{Ctx: ctx}, id, types.FileStatusTextExtracted); uerr != nil {
			return nil, fmt.Errorf("update status: %w", uerr)
		}
		observability.Current().IncIngestResult(pipelineFull, "degraded")
		res.Status = types.FileStatusTextExtracted
		res.Warning = embedFailedWarning
		return res, nil
	}

	if err := s.files.UpdateStatus(dbctx.Context{Ctx: ctx}, id, types.FileStatusCompleted); err != nil {
		return fail(nil, fmt.Errorf("update status: %w", err))
	}
	s.tracker.Advance(fid, progress.StageCompleted, fmt.Sprintf("Successfully processed %s!", filename), nil, nil)
	observability.Current().IncIngestResult(pipelineFull, types.FileStatusCompleted)
	s.log.Info("Successfully processed PDF", "file_id", fid, "pages", doc.TotalPages, "chunks", len(chunks))

	res.Status = types.FileStatusCompleted
	return res, nil
}

func (s *ingestService) StartEmbed(ctx context.Context, fileID uuid.UUID) error {
	f, texts, err := s.loadForEmbed(ctx, fileID)
	if err != nil {
		return err
	}
	s.tracker.Start(f.ID.String(), f.Filename, f.TotalPages)
	go func() {
		bg := ctxutil.Detach(ctx)
		if err := s.runEmbed(bg, f, texts); err != nil {
			s.log.Error("Background embedding failed", "file_id", f.ID, "error", err)
		}
	}()
	return nil
}

func (s *ingestService) Embed(ctx context.Context, fileID uuid.UUID) error {
	f, texts, err := s.loadForEmbed(ctx, fileID)
	if err != nil {
		return err
	}
	s.tracker.Start(f.ID.String(), f.Filename, f.TotalPages)
	return s.runEmbed(ctx, f, texts)
}

func (s *ingestService) loadForEmbed(ctx context.Context, fileID uuid.UUID) (*types.File, []string, error) {
	f, err := s.files.GetByID(dbctx.Context{Ctx: ctx}, fileID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, nil, apierr.NotFound("file_not_found", "File not found")
	}
	if err != nil {
		return nil, nil, err
	}
	if f.Status != types.FileStatusTextExtracted {
		return nil, nil, apierr.New(http.StatusConflict, "invalid_file_status",
			fmt.Errorf("file is %s; only text_extracted files can be embedded", f.Status))
	}
	rows, err := s.chunks.ListByFile(dbctx.Context{Ctx: ctx}, fileID)
	if err != nil {
		return nil, nil, fmt.Errorf("load chunks: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, apierr.New(http.StatusConflict, "no_chunks", errors.New("file has no stored text chunks"))
	}
	texts := make([]string, len(rows))
	for i, c := range rows {
		texts[i] = c.Content
	}
	return f, texts, nil
}

func (s *ingestService) runEmbed(ctx context.Context, f *types.File, texts []string) error {
	ctx, span := observability.StartSpan(ctx, "ingest.Embed", "file_id", f.ID.String())
	defer span.End()
	fid := f.ID.String()
	defer s.tracker.ScheduleCleanup(fid, s.cfg.ProgressCleanup)

	if err := s.embedAndStore(ctx, f, texts, pipelineEmbed); err != nil {
		s.tracker.Fail(fid, fmt.Errorf("embedding failed: %w", err))
		observability.Current().IncIngestResult(pipelineEmbed, "failed")
		return err
	}
	if err := s.files.UpdateStatus(dbctx.Context{Ctx: ctx}, f.ID, types.FileStatusCompleted); err != nil {
		s.tracker.Fail(fid, err)
		return fmt.Errorf("update status: %w", err)
	}
	s.tracker.Advance(fid, progress.StageCompleted, fmt.Sprintf("Successfully processed %s!", f.Filename), nil, nil)
	observability.Current().IncIngestResult(pipelineEmbed, types.FileStatusCompleted)
	return nil
}

// embedAndStore embeds chunks in paced batches and upserts them. Nothing is
// written to the index unless every batch embeds.
func (s *ingestService) embedAndStore(ctx context.Context, f *types.File, chunks []string, pipeline string) error {
	fid := f.ID.String()
	total := len(chunks)
	entry := 35
	s.tracker.Advance(fid, progress.StageGeneratingEmbeddings,
		fmt.Sprintf("Generating embeddings for %d chunks...", total), &entry, nil)

	limit := rate.Inf
	if s.cfg.EmbedBatchPause > 0 {
		limit = rate.Every(s.cfg.EmbedBatchPause)
	}
	limiter := rate.NewLimiter(limit, 1)

	start := time.Now()
	vectors := make([]vectorstore.Vector, 0, total)
	for lo := 0; lo < total; lo += s.cfg.EmbedBatchSize {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		hi := min(lo+s.cfg.EmbedBatchSize, total)
		embs, err := s.embedder.Embed(ctx, chunks[lo:hi])
		if err != nil {
			s.observe(pipeline, "embed", err, start)
			return fmt.Errorf("embed chunks %d-%d: %w", lo, hi-1, err)
		}
		if len(embs) != hi-lo {
			err := fmt.Errorf("embed chunks %d-%d: got %d vectors", lo, hi-1, len(embs))
			s.observe(pipeline, "embed", err, start)
			return err
		}
		for j, e := range embs {
			i := lo + j
			vectors = append(vectors, vectorstore.Vector{
				ID:     types.ChunkVectorID(f.ID, i),
				Values: e,
				Text:   chunks[i],
				Metadata: map[string]any{
					"file_id":     fid,
					"filename":    f.Filename,
					"chunk_index": i,
					"chunk_type":  types.ChunkTypeGeneral,
				},
			})
		}
		s.tracker.AdvanceEmbedding(fid, hi, total)
	}
	s.observe(pipeline, "embed", nil, start)
	observability.Current().AddEmbedded(len(vectors))

	s.tracker.Advance(fid, progress.StageStoringVectors, "Storing embeddings in vector database...", nil, nil)
	start = time.Now()
	var err error
	if len(vectors) > 0 {
		err = s.vectors.Upsert(ctx, vectors)
	}
	s.observe(pipeline, "upsert", err, start)
	if err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}
	return nil
}

func (s *ingestService) markFailed(ctx context.Context, f *types.File) {
	if f == nil {
		return
	}
	if err := s.files.UpdateStatus(dbctx.Context{Ctx: ctx}, f.ID, types.FileStatusFailed); err != nil {
		s.log.Warn("Could not mark file failed", "file_id", f.ID, "error", err)
	}
}

func (s *ingestService) observe(pipeline, stage string, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.Current().ObserveIngestStage(pipeline, stage, status, time.Since(start))
}
