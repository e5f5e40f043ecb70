package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/ingestion/extractor"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
	"github.com/yungbote/docqa-backend/internal/retrieval"
)

type AreaInput struct {
	AreaType    string
	PageNumber  int
	Coordinates *types.Coordinates
	Content     string
}

type AreaService interface {
	// Add stores the area. Empty content is filled from the PDF when
	// possible, and non-empty content is embedded; failures of either step
	// are logged and do not fail the call.
	Add(ctx context.Context, fileID uuid.UUID, in AreaInput) (*types.DocumentArea, error)
	// List filters by areaType when it is non-empty.
	List(ctx context.Context, fileID uuid.UUID, areaType string) ([]*types.DocumentArea, error)
	Delete(ctx context.Context, fileID, areaID uuid.UUID) error
	// ExtractText returns the text under coords without storing anything.
	ExtractText(ctx context.Context, fileID uuid.UUID, page int, coords *types.Coordinates) (string, error)
}

type areaService struct {
	log       *logger.Logger
	areas     repos.AreaRepo
	files     FileService
	extractor extractor.Extractor
	embedder  retrieval.Embedder
	vectors   vectorstore.Store
}

func NewAreaService(
	baseLog *logger.Logger,
	rs repos.Set,
	files FileService,
	ex extractor.Extractor,
	embedder retrieval.Embedder,
	vectors vectorstore.Store,
) AreaService {
	return &areaService{
		log:       baseLog.With("service", "AreaService"),
		areas:     rs.Areas,
		files:     files,
		extractor: ex,
		embedder:  embedder,
		vectors:   vectors,
	}
}

func (s *areaService) Add(ctx context.Context, fileID uuid.UUID, in AreaInput) (*types.DocumentArea, error) {
	kind, ok := types.ParseAreaType(in.AreaType)
	if !ok {
		return nil, apierr.BadRequest("invalid_area_type", "area_type must be 'problem' or 'solution'")
	}
	if in.PageNumber < 1 || in.Coordinates == nil {
		return nil, apierr.BadRequest("missing_area_location", "page_number and coordinates are required")
	}
	f, err := s.files.Require(ctx, fileID)
	if err != nil {
		return nil, err
	}

	area, err := s.areas.Create(dbctx.Context{Ctx: ctx}, &types.DocumentArea{
		FileID:      f.ID,
		PageNumber:  in.PageNumber,
		AreaType:    kind,
		Coordinates: *in.Coordinates,
		Content:     in.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("create area: %w", err)
	}

	if area.Content == "" {
		text, err := s.extract(ctx, f, area.PageNumber, area.Coordinates)
		switch {
		case err != nil:
			s.log.Warn("Could not extract content from area", "area_id", area.ID, "error", err)
		case strings.TrimSpace(text) != "":
			if err := s.areas.UpdateContent(dbctx.Context{Ctx: ctx}, area.ID, text); err != nil {
				s.log.Warn("Could not save extracted area content", "area_id", area.ID, "error", err)
			} else {
				area.Content = text
			}
		}
	}

	if strings.TrimSpace(area.Content) != "" {
		if err := s.index(ctx, area); err != nil {
			s.log.Warn("Could not create embedding for area", "area_id", area.ID, "error", err)
		}
	}
	return area, nil
}

func (s *areaService) index(ctx context.Context, area *types.DocumentArea) error {
	embs, err := s.embedder.Embed(ctx, []string{area.Content})
	if err != nil {
		return err
	}
	if len(embs) != 1 {
		return fmt.Errorf("embed area: got %d vectors", len(embs))
	}
	return s.vectors.Upsert(ctx, []vectorstore.Vector{{
		ID:     types.AreaVectorID(area.ID),
		Values: embs[0],
		Text:   area.Content,
		Metadata: map[string]any{
			"file_id":     area.FileID.String(),
			"area_id":     area.ID.String(),
			"area_type":   string(area.AreaType),
			"page_number": area.PageNumber,
			"chunk_type":  area.AreaType.ChunkType(),
			"coordinates": area.Coordinates.Map(),
		},
	}})
}

func (s *areaService) List(ctx context.Context, fileID uuid.UUID, areaType string) ([]*types.DocumentArea, error) {
	var filter *types.AreaType
	if areaType != "" {
		kind, ok := types.ParseAreaType(areaType)
		if !ok {
			return nil, apierr.BadRequest("invalid_area_type", "area_type must be 'problem' or 'solution'")
		}
		filter = &kind
	}
	if _, err := s.files.Require(ctx, fileID); err != nil {
		return nil, err
	}
	return s.areas.ListByFile(dbctx.Context{Ctx: ctx}, fileID, filter)
}

func (s *areaService) Delete(ctx context.Context, fileID, areaID uuid.UUID) error {
	if _, err := s.files.Require(ctx, fileID); err != nil {
		return err
	}
	ok, err := s.areas.DeleteForFile(dbctx.Context{Ctx: ctx}, areaID, fileID)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.NotFound("area_not_found", "Area not found")
	}
	if err := s.vectors.Delete(ctx, vectorstore.Eq("area_id", areaID.String())); err != nil {
		s.log.Warn("Could not delete area from vector store", "area_id", areaID, "error", err)
	}
	return nil
}

func (s *areaService) ExtractText(ctx context.Context, fileID uuid.UUID, page int, coords *types.Coordinates) (string, error) {
	if coords == nil {
		return "", apierr.BadRequest("missing_coordinates", "Coordinates are required")
	}
	if page < 1 {
		page = 1
	}
	f, err := s.files.Require(ctx, fileID)
	if err != nil {
		return "", err
	}
	text, err := s.extract(ctx, f, page, *coords)
	if errors.Is(err, extractor.ErrPageNotFound) {
		return "", apierr.BadRequest("page_not_found", err.Error())
	}
	return text, err
}

func (s *areaService) extract(ctx context.Context, f *types.File, page int, coords types.Coordinates) (string, error) {
	data, err := s.files.ReadPDF(ctx, f)
	if err != nil {
		return "", err
	}
	return s.extractor.AreaText(data, page, coords)
}
