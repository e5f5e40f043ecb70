package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	"github.com/yungbote/docqa-backend/internal/data/repos/testutil"
	types "github.com/yungbote/docqa-backend/internal/domain"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
)

type fakeEmbedder struct {
	calls atomic.Int32
	vec   []float32
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = e.vec
	}
	return out, nil
}

type fixture struct {
	db       *gorm.DB
	vectors  *vectorstore.Memory
	embedder *fakeEmbedder
	asm      *Assembler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SQLite(t)
	vs := vectorstore.NewMemory()
	emb := &fakeEmbedder{vec: []float32{1, 0, 0}}
	return &fixture{
		db:       db,
		vectors:  vs,
		embedder: emb,
		asm:      NewAssembler(testutil.Logger(t), repos.NewSet(db, testutil.Logger(t)), vs, emb, DefaultConfig()),
	}
}

func (fx *fixture) addChunkVector(t *testing.T, f *types.File, i int, text string, values ...float32) {
	t.Helper()
	require.NoError(t, fx.vectors.Upsert(context.Background(), []vectorstore.Vector{{
		ID:     types.ChunkVectorID(f.ID, i),
		Values: values,
		Text:   text,
		Metadata: map[string]any{
			"file_id":     f.ID.String(),
			"filename":    f.Filename,
			"chunk_index": i,
			"chunk_type":  types.ChunkTypeGeneral,
		},
	}}))
}

func (fx *fixture) addAreaVector(t *testing.T, f *types.File, kind types.AreaType, text string, values ...float32) {
	t.Helper()
	id := uuid.New()
	require.NoError(t, fx.vectors.Upsert(context.Background(), []vectorstore.Vector{{
		ID:     types.AreaVectorID(id),
		Values: values,
		Text:   text,
		Metadata: map[string]any{
			"file_id":    f.ID.String(),
			"area_id":    id.String(),
			"area_type":  string(kind),
			"chunk_type": kind.ChunkType(),
		},
	}}))
}

func TestAssembleCompletedFilePrioritizesAreas(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := testutil.SeedFile(t, ctx, fx.db, "algebra.pdf", types.FileStatusCompleted)
	fx.addAreaVector(t, f, types.AreaProblem, "Solve x^2 = 4", 1, 0, 0)
	fx.addAreaVector(t, f, types.AreaSolution, "x = 2 or x = -2", 0.9, 0.1, 0)
	fx.addChunkVector(t, f, 0, "Quadratic equations intro", 0.8, 0.2, 0)
	fx.addChunkVector(t, f, 1, "Unrelated appendix", 0, 0, 1)

	res, err := fx.asm.Assemble(ctx, Request{Question: "how do I solve this?", FileIDs: []uuid.UUID{f.ID}})
	require.NoError(t, err)

	require.Len(t, res.AreaSnippets, 2)
	require.Equal(t, "From algebra.pdf [PROBLEM AREA]: Solve x^2 = 4", res.AreaSnippets[0].String())
	require.Equal(t, "From algebra.pdf [SOLUTION AREA]: x = 2 or x = -2", res.AreaSnippets[1].String())
	// General search is not type-restricted, so area vectors rank there too.
	require.Len(t, res.GeneralSnippets, 2)
	require.Len(t, res.Sources, 3)
	require.Equal(t, res.AreaSnippets[0].String(), res.Sources[0])
	require.Equal(t, ResponseModeProblemSolution, res.ResponseMode())
	require.Equal(t, 1, res.DocumentsUsed)

	require.Contains(t, res.Prompt, "helping with 1 document(s): algebra.pdf")
	require.Contains(t, res.Prompt, "EDUCATIONAL CONTEXT")
	require.Contains(t, res.Prompt, "Relevant content from the documents:\nFrom algebra.pdf [PROBLEM AREA]: Solve x^2 = 4")
	require.Contains(t, res.Prompt, "Current question: how do I solve this?")
	require.Equal(t, int32(1), fx.embedder.calls.Load())
}

func TestAssembleWithoutEmbeddingsUsesSubstringAndKeywords(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := testutil.SeedFile(t, ctx, fx.db, "notes.pdf", types.FileStatusTextExtracted)
	testutil.SeedArea(t, ctx, fx.db, f, types.AreaSolution, "The Derivative of x^2 is 2x")
	testutil.SeedArea(t, ctx, fx.db, f, types.AreaProblem, "Find the derivative of x^2 quickly")
	testutil.SeedArea(t, ctx, fx.db, f, types.AreaProblem, "Integrate sin(x)")
	testutil.SeedChunks(t, ctx, fx.db, f, "nothing here", "the DERIVATIVE measures change", "more derivative rules")

	res, err := fx.asm.Assemble(ctx, Request{Question: "derivative of x^2", FileIDs: []uuid.UUID{f.ID}})
	require.NoError(t, err)

	require.Len(t, res.AreaSnippets, 2)
	require.Equal(t, "problem", res.AreaSnippets[0].AreaType)
	require.Equal(t, "Find the derivative of x^2 quickly...", res.AreaSnippets[0].Text)
	require.Equal(t, "solution", res.AreaSnippets[1].AreaType)

	require.Len(t, res.GeneralSnippets, 2)
	require.Equal(t, "the DERIVATIVE measures change", res.GeneralSnippets[0].Text)
	require.Equal(t, int32(0), fx.embedder.calls.Load())
}

func TestAssembleAreaPreviewIsTruncated(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := testutil.SeedFile(t, ctx, fx.db, "long.pdf", types.FileStatusProcessing)
	testutil.SeedArea(t, ctx, fx.db, f, types.AreaProblem, "needle "+strings.Repeat("a", 600))

	res, err := fx.asm.Assemble(ctx, Request{Question: "NEEDLE", FileIDs: []uuid.UUID{f.ID}})
	require.NoError(t, err)
	require.Len(t, res.AreaSnippets, 1)
	require.Len(t, []rune(res.AreaSnippets[0].Text), 503)
	require.True(t, strings.HasSuffix(res.AreaSnippets[0].Text, "..."))
}

func TestAssembleNoSnippetsPrompt(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := testutil.SeedFile(t, ctx, fx.db, "empty.pdf", types.FileStatusTextExtracted)

	res, err := fx.asm.Assemble(ctx, Request{Question: "anything?", FileIDs: []uuid.UUID{f.ID}})
	require.NoError(t, err)
	require.Empty(t, res.Sources)
	require.Equal(t, ResponseModeEducational, res.ResponseMode())
	require.NotContains(t, res.Prompt, "Relevant content from the documents")
	require.Contains(t, res.Prompt, "working with 1 document(s): empty.pdf")
	require.Contains(t, res.Prompt, "No specific relevant content was found")
}

func TestAssembleFailingFileContributesNothing(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.embedder.err = errors.New("quota exceeded")
	done := testutil.SeedFile(t, ctx, fx.db, "embedded.pdf", types.FileStatusCompleted)
	fx.addChunkVector(t, done, 0, "vector text", 1, 0, 0)
	plain := testutil.SeedFile(t, ctx, fx.db, "plain.pdf", types.FileStatusTextExtracted)
	testutil.SeedChunks(t, ctx, fx.db, plain, "keyword match for limits")

	res, err := fx.asm.Assemble(ctx, Request{Question: "limits", FileIDs: []uuid.UUID{done.ID, plain.ID}})
	require.NoError(t, err)
	require.Len(t, res.GeneralSnippets, 1)
	require.Equal(t, "From plain.pdf: keyword match for limits", res.GeneralSnippets[0].String())
	require.Equal(t, []string{"embedded.pdf", "plain.pdf"}, res.DocumentNames)
	require.Equal(t, int32(1), fx.embedder.calls.Load(), "failed embedding is shared, not retried per search")
}

func TestAssembleEmbedsQuestionOncePerCall(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	var ids []uuid.UUID
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		f := testutil.SeedFile(t, ctx, fx.db, name, types.FileStatusCompleted)
		fx.addChunkVector(t, f, 0, "text of "+name, 1, 0, 0)
		ids = append(ids, f.ID)
	}
	res, err := fx.asm.Assemble(ctx, Request{Question: "q", FileIDs: ids})
	require.NoError(t, err)
	require.Equal(t, int32(1), fx.embedder.calls.Load())
	require.Len(t, res.GeneralSnippets, 3)
	// Merged in session order regardless of goroutine scheduling.
	require.Equal(t, "a.pdf", res.GeneralSnippets[0].Filename)
	require.Equal(t, "b.pdf", res.GeneralSnippets[1].Filename)
	require.Equal(t, "c.pdf", res.GeneralSnippets[2].Filename)
	require.Contains(t, res.Prompt, "3 document(s): a.pdf, b.pdf, c.pdf")
}

func TestAssembleCapsMergedSnippets(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	var ids []uuid.UUID
	for _, name := range []string{"a.pdf", "b.pdf"} {
		f := testutil.SeedFile(t, ctx, fx.db, name, types.FileStatusCompleted)
		for i := 0; i < 3; i++ {
			fx.addAreaVector(t, f, types.AreaProblem, name+" problem", 1, float32(i), 0)
		}
		ids = append(ids, f.ID)
	}
	res, err := fx.asm.Assemble(ctx, Request{Question: "q", FileIDs: ids})
	require.NoError(t, err)
	require.Len(t, res.AreaSnippets, 3)
	require.LessOrEqual(t, len(res.GeneralSnippets), 3)
	require.Equal(t, "a.pdf", res.AreaSnippets[2].Filename)
}

func TestAssembleMissingFileStillCounted(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := testutil.SeedFile(t, ctx, fx.db, "real.pdf", types.FileStatusTextExtracted)

	res, err := fx.asm.Assemble(ctx, Request{Question: "q", FileIDs: []uuid.UUID{f.ID, uuid.New()}})
	require.NoError(t, err)
	require.Equal(t, 2, res.DocumentsUsed)
	require.Equal(t, []string{"real.pdf"}, res.DocumentNames)
	require.Contains(t, res.Prompt, "2 document(s): real.pdf\n")
}

func TestAssembleRendersRecentHistory(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := testutil.SeedFile(t, ctx, fx.db, "h.pdf", types.FileStatusTextExtracted)
	history := []HistoryMessage{
		{Role: "user", Content: "m1"},
		{Role: "assistant", Content: "m2"},
		{Role: "user", Content: "m3"},
		{Role: "assistant", Content: "m4"},
		{Role: "user", Content: "m5"},
		{Role: "assistant", Content: "m6"},
	}
	res, err := fx.asm.Assemble(ctx, Request{Question: "next", FileIDs: []uuid.UUID{f.ID}, History: history})
	require.NoError(t, err)
	require.Contains(t, res.Prompt, "Previous conversation:\nUser: m3\nAssistant: m4\nUser: m5\nAssistant: m6\n\nCurrent question: next")
	require.NotContains(t, res.Prompt, "m2")
}
