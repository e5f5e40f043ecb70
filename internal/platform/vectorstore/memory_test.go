package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, m *Memory) {
	t.Helper()
	err := m.Upsert(context.Background(), []Vector{
		{ID: "f1_chunk_0", Values: []float32{1, 0}, Text: "limits", Metadata: map[string]any{"file_id": "f1", "chunk_type": "general_text", "chunk_index": 0}},
		{ID: "f1_chunk_1", Values: []float32{0.9, 0.1}, Text: "derivatives", Metadata: map[string]any{"file_id": "f1", "chunk_type": "general_text", "chunk_index": 1}},
		{ID: "area_a", Values: []float32{0.8, 0.2}, Text: "problem 1", Metadata: map[string]any{"file_id": "f1", "chunk_type": "problem_area", "area_id": "a"}},
		{ID: "f2_chunk_0", Values: []float32{1, 0}, Text: "other", Metadata: map[string]any{"file_id": "f2", "chunk_type": "general_text", "chunk_index": 0}},
	})
	require.NoError(t, err)
}

func TestMemoryQueryFiltersAndRanks(t *testing.T) {
	m := NewMemory()
	seed(t, m)
	ctx := context.Background()

	got, err := m.Query(ctx, []float32{1, 0}, 2, Eq("file_id", "f1"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "f1_chunk_0", got[0].ID)
	require.Equal(t, "f1_chunk_1", got[1].ID)
	require.Equal(t, "limits", got[0].Text)

	areas, err := m.Query(ctx, []float32{1, 0}, 3, Eq("file_id", "f1").AnyOf("chunk_type", "problem_area", "solution_area"))
	require.NoError(t, err)
	require.Len(t, areas, 1)
	require.Equal(t, "area_a", areas[0].ID)
}

func TestMemoryNumericMetadataAfterRoundTrip(t *testing.T) {
	f := Eq("chunk_index", float64(1))
	require.True(t, f.Matches(map[string]any{"chunk_index": 1}))
	require.False(t, f.Matches(map[string]any{"chunk_index": 2}))
	require.False(t, f.Matches(map[string]any{}))
}

func TestMemoryDeleteAndCount(t *testing.T) {
	m := NewMemory()
	seed(t, m)
	ctx := context.Background()

	n, err := m.Count(ctx, Eq("file_id", "f1"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, m.Delete(ctx, Eq("area_id", "a")))
	n, _ = m.Count(ctx, Eq("file_id", "f1"))
	require.Equal(t, 2, n)

	require.NoError(t, m.Delete(ctx, Eq("file_id", "f1")))
	n, _ = m.Count(ctx, Filter{})
	require.Equal(t, 1, n)

	err = m.Delete(ctx, Filter{})
	require.True(t, errors.Is(err, ErrInvalidFilter))
}

func TestMemoryGetInsertionOrder(t *testing.T) {
	m := NewMemory()
	seed(t, m)
	recs, err := m.Get(context.Background(), Eq("file_id", "f1"), 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "f1_chunk_0", recs[0].ID)
	require.Equal(t, "f1_chunk_1", recs[1].ID)
}

func TestMemoryUpsertRejectsEmptyVector(t *testing.T) {
	err := NewMemory().Upsert(context.Background(), []Vector{{ID: "x"}})
	require.True(t, errors.Is(err, ErrInvalidVector))
}

func TestFilterValidate(t *testing.T) {
	require.NoError(t, Eq("file_id", "x").Validate())
	require.Error(t, Filter{In: map[string][]any{"chunk_type": nil}}.Validate())
	require.Equal(t, []string{"chunk_type", "file_id"}, Eq("file_id", "x").AnyOf("chunk_type", "a").Fields())
}
