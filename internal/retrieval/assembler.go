package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/observability"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
)

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type Config struct {
	AreaTopK           int
	GeneralTopK        int
	KeywordLimit       int
	MaxAreaSnippets    int
	MaxGeneralSnippets int
	MaxSources         int
	HistoryWindow      int
	// AreaPreviewChars bounds area text used by the substring fallback.
	AreaPreviewChars int
	Concurrency      int
}

func DefaultConfig() Config {
	return Config{
		AreaTopK:           3,
		GeneralTopK:        2,
		KeywordLimit:       2,
		MaxAreaSnippets:    3,
		MaxGeneralSnippets: 3,
		MaxSources:         3,
		HistoryWindow:      4,
		AreaPreviewChars:   500,
		Concurrency:        4,
	}
}

type Request struct {
	Question string
	// FileIDs in session order; snippets are merged in this order.
	FileIDs []uuid.UUID
	History []HistoryMessage
}

type Result struct {
	Prompt          string
	AreaSnippets    []Snippet
	GeneralSnippets []Snippet
	// Sources are the rendered first snippets of the merged list.
	Sources       []string
	DocumentsUsed int
	DocumentNames []string
}

const (
	ResponseModeEducational     = "educational"
	ResponseModeProblemSolution = "problem-solution-guided"
)

func (r Result) ResponseMode() string {
	if len(r.AreaSnippets) > 0 {
		return ResponseModeProblemSolution
	}
	return ResponseModeEducational
}

// Assembler builds the generation prompt for a question over a session's
// documents.
type Assembler struct {
	log      *logger.Logger
	files    repos.FileRepo
	areas    repos.AreaRepo
	chunks   repos.ChunkRepo
	vectors  vectorstore.Store
	embedder Embedder
	cfg      Config
}

func NewAssembler(log *logger.Logger, rs repos.Set, vectors vectorstore.Store, embedder Embedder, cfg Config) *Assembler {
	def := DefaultConfig()
	if cfg.AreaTopK <= 0 {
		cfg.AreaTopK = def.AreaTopK
	}
	if cfg.GeneralTopK <= 0 {
		cfg.GeneralTopK = def.GeneralTopK
	}
	if cfg.KeywordLimit <= 0 {
		cfg.KeywordLimit = def.KeywordLimit
	}
	if cfg.MaxAreaSnippets <= 0 {
		cfg.MaxAreaSnippets = def.MaxAreaSnippets
	}
	if cfg.MaxGeneralSnippets <= 0 {
		cfg.MaxGeneralSnippets = def.MaxGeneralSnippets
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = def.MaxSources
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	if cfg.AreaPreviewChars <= 0 {
		cfg.AreaPreviewChars = def.AreaPreviewChars
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Assembler{
		log:      log.With("service", "ContextAssembler"),
		files:    rs.Files,
		areas:    rs.Areas,
		chunks:   rs.Chunks,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg,
	}
}

type fileHits struct {
	areas   []Snippet
	general []Snippet
}

// Assemble never fails because of one document: retrieval errors are logged
// and that document contributes nothing. It errors only when the documents
// themselves cannot be loaded.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Result, error) {
	ctx, span := observability.StartSpan(ctx, "retrieval.Assemble")
	defer span.End()

	files, err := a.loadFiles(ctx, req.FileIDs)
	if err != nil {
		return Result{}, err
	}

	query := sync.OnceValues(func() ([]float32, error) {
		vecs, err := a.embedder.Embed(ctx, []string{req.Question})
		if err != nil {
			return nil, fmt.Errorf("embed question: %w", err)
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("embed question: got %d vectors", len(vecs))
		}
		return vecs[0], nil
	})

	hits := make([]fileHits, len(files))
	a.forEachFile(files, func(i int, f *types.File) {
		h, err := a.searchFile(ctx, f, req.Question, query)
		if err != nil {
			a.log.Warn("Retrieval failed for document; skipping it", "file_id", f.ID, "error", err)
			return
		}
		hits[i] = h
	})

	var areaHits, generalHits []Snippet
	for _, h := range hits {
		areaHits = append(areaHits, h.areas...)
		generalHits = append(generalHits, h.general...)
	}

	// Repeated fallback guard: with nothing found anywhere, run the general
	// search once more per document using the same status branch.
	if len(areaHits) == 0 && len(generalHits) == 0 && len(files) > 0 {
		retry := make([][]Snippet, len(files))
		a.forEachFile(files, func(i int, f *types.File) {
			s, err := a.generalSearch(ctx, f, req.Question, query)
			if err != nil {
				a.log.Warn("Fallback search failed for document", "file_id", f.ID, "error", err)
				return
			}
			retry[i] = s
		})
		for _, s := range retry {
			generalHits = append(generalHits, s...)
		}
	}

	areaHits = capSnippets(areaHits, a.cfg.MaxAreaSnippets)
	generalHits = capSnippets(generalHits, a.cfg.MaxGeneralSnippets)
	merged := make([]Snippet, 0, len(areaHits)+len(generalHits))
	merged = append(merged, areaHits...)
	merged = append(merged, generalHits...)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
	}

	sources := make([]string, 0, a.cfg.MaxSources)
	for _, s := range capSnippets(merged, a.cfg.MaxSources) {
		sources = append(sources, s.String())
	}

	observability.Current().AddRetrievalSnippets("area", len(areaHits))
	observability.Current().AddRetrievalSnippets("general", len(generalHits))

	return Result{
		Prompt: buildPrompt(promptInput{
			question:      req.Question,
			documentCount: len(req.FileIDs),
			documentNames: names,
			snippets:      merged,
			hasAreaHits:   len(areaHits) > 0,
			history:       req.History,
			historyWindow: a.cfg.HistoryWindow,
		}),
		AreaSnippets:    areaHits,
		GeneralSnippets: generalHits,
		Sources:         sources,
		DocumentsUsed:   len(req.FileIDs),
		DocumentNames:   names,
	}, nil
}

// loadFiles returns the existing files in request order; unknown ids are dropped.
func (a *Assembler) loadFiles(ctx context.Context, ids []uuid.UUID) ([]*types.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := a.files.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, fmt.Errorf("load session documents: %w", err)
	}
	byID := make(map[uuid.UUID]*types.File, len(rows))
	for _, f := range rows {
		byID[f.ID] = f
	}
	out := make([]*types.File, 0, len(ids))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (a *Assembler) forEachFile(files []*types.File, fn func(i int, f *types.File)) {
	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			fn(i, f)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Assembler) searchFile(ctx context.Context, f *types.File, question string, query func() ([]float32, error)) (fileHits, error) {
	areas, err := a.areas.ListByFile(dbctx.Context{Ctx: ctx}, f.ID, nil)
	if err != nil {
		return fileHits{}, fmt.Errorf("list areas: %w", err)
	}

	var h fileHits
	if f.HasEmbeddings() {
		q, err := query()
		if err != nil {
			return fileHits{}, err
		}
		filter := vectorstore.Eq("file_id", f.ID.String()).
			AnyOf("chunk_type", types.ChunkTypeProblemArea, types.ChunkTypeSolutionArea)
		matches, err := a.vectors.Query(ctx, q, a.cfg.AreaTopK, filter)
		if err != nil {
			return fileHits{}, fmt.Errorf("area search: %w", err)
		}
		for _, m := range matches {
			areaType, _ := m.Metadata["area_type"].(string)
			if areaType == "" {
				areaType = "unknown"
			}
			h.areas = append(h.areas, Snippet{FileID: f.ID, Filename: f.Filename, AreaType: areaType, Text: m.Text})
		}
	} else {
		h.areas = a.matchAreas(f, areas, question)
	}

	h.general, err = a.generalSearch(ctx, f, question, query)
	if err != nil {
		return fileHits{}, err
	}
	return h, nil
}

// matchAreas is the no-embeddings path: an area matches when it contains the
// whole question, case-insensitively. Problems come before solutions.
func (a *Assembler) matchAreas(f *types.File, areas []*types.DocumentArea, question string) []Snippet {
	q := strings.ToLower(question)
	var out []Snippet
	for _, kind := range []types.AreaType{types.AreaProblem, types.AreaSolution} {
		for _, area := range areas {
			if area.AreaType != kind || area.Content == "" {
				continue
			}
			if !strings.Contains(strings.ToLower(area.Content), q) {
				continue
			}
			out = append(out, Snippet{
				FileID:   f.ID,
				Filename: f.Filename,
				AreaType: string(area.AreaType),
				Text:     truncateRunes(area.Content, a.cfg.AreaPreviewChars) + "...",
			})
		}
	}
	return out
}

func (a *Assembler) generalSearch(ctx context.Context, f *types.File, question string, query func() ([]float32, error)) ([]Snippet, error) {
	var out []Snippet
	if f.HasEmbeddings() {
		q, err := query()
		if err != nil {
			return nil, err
		}
		matches, err := a.vectors.Query(ctx, q, a.cfg.GeneralTopK, vectorstore.Eq("file_id", f.ID.String()))
		if err != nil {
			return nil, fmt.Errorf("general search: %w", err)
		}
		for _, m := range matches {
			out = append(out, Snippet{FileID: f.ID, Filename: f.Filename, Text: m.Text})
		}
		return out, nil
	}

	chunks, err := a.chunks.SearchKeywords(dbctx.Context{Ctx: ctx}, f.ID, question, a.cfg.KeywordLimit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	for _, c := range chunks {
		out = append(out, Snippet{FileID: f.ID, Filename: f.Filename, Text: c.Content})
	}
	return out, nil
}

func capSnippets(s []Snippet, n int) []Snippet {
	if len(s) > n {
		return s[:n]
	}
	return s
}
