package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	"github.com/yungbote/docqa-backend/internal/data/repos/testutil"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/ingestion/extractor"
	"github.com/yungbote/docqa-backend/internal/pkg/dbctx"
	"github.com/yungbote/docqa-backend/internal/platform/apierr"
	"github.com/yungbote/docqa-backend/internal/platform/blob"
	"github.com/yungbote/docqa-backend/internal/platform/openai"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
	"github.com/yungbote/docqa-backend/internal/progress"
	"github.com/yungbote/docqa-backend/internal/retrieval"
)

type stubExtractor struct {
	doc      *extractor.Document
	err      error
	areaText string
	areaErr  error

	mu        sync.Mutex
	areaCalls int
}

func (e *stubExtractor) Extract([]byte) (*extractor.Document, error) {
	return e.doc, e.err
}

func (e *stubExtractor) AreaText(_ []byte, _ int, _ types.Coordinates) (string, error) {
	e.mu.Lock()
	e.areaCalls++
	e.mu.Unlock()
	return e.areaText, e.areaErr
}

type stubEmbedder struct {
	mu     sync.Mutex
	calls  int
	inputs [][]string
	failAt int // 1-based call that fails; 0 never
	onCall func(call int)
}

func (e *stubEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.onCall != nil {
		e.onCall(e.calls)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.inputs = append(e.inputs, append([]string(nil), inputs...))
	if e.failAt > 0 && e.calls >= e.failAt {
		return nil, errors.New("embedding quota exceeded")
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, float32(len(inputs[i])), 0}
	}
	return out, nil
}

type stubGenerator struct {
	mu     sync.Mutex
	system string
	user   string
	images []openai.ImageInput
	answer string
	err    error
}

func (g *stubGenerator) GenerateText(_ context.Context, system, user string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.system, g.user, g.images = system, user, nil
	return g.answer, g.err
}

func (g *stubGenerator) GenerateTextWithImages(_ context.Context, system, user string, images []openai.ImageInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.system, g.user, g.images = system, user, images
	return g.answer, g.err
}

type recordingNotifier struct {
	mu    sync.Mutex
	snaps []progress.Snapshot
}

func (n *recordingNotifier) NotifyProgress(s progress.Snapshot) {
	n.mu.Lock()
	n.snaps = append(n.snaps, s)
	n.mu.Unlock()
}

func (n *recordingNotifier) stages() []progress.Stage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []progress.Stage
	for _, s := range n.snaps {
		if len(out) == 0 || out[len(out)-1] != s.Stage {
			out = append(out, s.Stage)
		}
	}
	return out
}

func (n *recordingNotifier) percents() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, 0, len(n.snaps))
	for _, s := range n.snaps {
		out = append(out, s.Percent)
	}
	return out
}

type env struct {
	db        *gorm.DB
	rs        repos.Set
	blobs     *blob.Local
	vectors   *vectorstore.Memory
	extractor *stubExtractor
	embedder  *stubEmbedder
	gen       *stubGenerator
	notifier  *recordingNotifier
	tracker   *progress.Tracker

	sessions  SessionService
	files     FileService
	areas     AreaService
	ingest    IngestService
	chat      ChatService
	translate TranslateService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.SQLite(t)
	blobs, err := blob.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("local blob: %v", err)
	}
	e := &env{
		db:      db,
		rs:      repos.NewSet(db, log),
		blobs:   blobs,
		vectors: vectorstore.NewMemory(),
		extractor: &stubExtractor{
			doc: &extractor.Document{
				TotalPages: 2,
				Text:       "limits describe behavior near a point and derivatives measure change",
			},
			areaText: "extracted area text",
		},
		embedder: &stubEmbedder{},
		gen:      &stubGenerator{answer: "Here is a hint."},
		notifier: &recordingNotifier{},
	}
	e.tracker = progress.NewTracker(log, progress.WithNotifier(e.notifier))
	e.sessions = NewSessionService(db, log, e.rs)
	e.files = NewFileService(db, log, e.rs, e.sessions, e.blobs, e.vectors, e.tracker)
	e.areas = NewAreaService(log, e.rs, e.files, e.extractor, e.embedder, e.vectors)
	e.ingest = NewIngestService(log, e.rs, e.blobs, e.extractor, e.embedder, e.vectors, e.tracker, IngestConfig{
		ChunkSize:      24,
		ChunkOverlap:   0,
		EmbedBatchSize: 2,
	})
	asm := retrieval.NewAssembler(log, e.rs, e.vectors, e.embedder, retrieval.DefaultConfig())
	e.chat = NewChatService(log, e.rs, e.sessions, asm, e.gen)
	e.translate = NewTranslateService(log, e.gen)
	return e
}

func requireAPIStatus(t *testing.T, err error, status int) {
	t.Helper()
	ae, ok := apierr.As(err)
	if !ok {
		t.Fatalf("want api error with status %d got=%v", status, err)
	}
	if ae.Status != status {
		t.Fatalf("status: want=%d got=%d (%v)", status, ae.Status, err)
	}
}

var pdfBytes = []byte("%PDF-1.4 test document")

func ctxDBC(ctx context.Context) dbctx.Context { return dbctx.Context{Ctx: ctx} }
