package progress

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTracker(t *testing.T, opts ...Option) (*Tracker, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewTracker(logger.Nop(), append([]Option{WithClock(clk.Now)}, opts...)...), clk
}

func intp(v int) *int { return &v }

func TestStartCreatesUploadingRecord(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("f1", "a.pdf", 3)

	s, ok := tr.Snapshot("f1")
	require.True(t, ok)
	require.Equal(t, StageUploading, s.Stage)
	require.Equal(t, 5, s.Percent)
	require.Equal(t, "File uploaded successfully", s.Message)
	require.Equal(t, 3, s.TotalPages)
}

func TestAdvanceUnknownIDIsNoop(t *testing.T) {
	tr, _ := newTestTracker(t)
	require.False(t, tr.Advance("missing", StageExtractingText, "x", nil, nil))
	require.False(t, tr.AdvanceEmbedding("missing", 1, 2))
	require.False(t, tr.Fail("missing", errors.New("boom")))
	_, ok := tr.Snapshot("missing")
	require.False(t, ok)
}

func TestAdvanceUsesStageDefaultsAndCounters(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("f1", "a.pdf", 0)

	want := []struct {
		stage   Stage
		percent int
	}{
		{StageUploading, 10},
		{StageExtractingText, 25},
		{StageChunkingText, 35},
		{StageGeneratingEmbeddings, 75},
		{StageStoringVectors, 90},
		{StageCompleted, 100},
	}
	for i, w := range want {
		require.True(t, tr.Advance("f1", w.stage, "m", nil, nil))
		s, _ := tr.Snapshot("f1")
		require.Equal(t, w.percent, s.Percent, "stage %s", w.stage)
		require.Equal(t, i+1, s.StagesCompleted)
	}
}

func TestAdvanceExplicitPercentAndExtra(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("f1", "a.pdf", 0)
	require.True(t, tr.Advance("f1", StageExtractingText, "Extracted 4 pages successfully", intp(30), map[string]any{"total_pages": 4}))
	require.True(t, tr.Advance("f1", StageChunkingText, "Created 9 text chunks", nil, map[string]any{"total_chunks": 9}))

	s, _ := tr.Snapshot("f1")
	require.Equal(t, 4, s.TotalPages)
	require.Equal(t, 9, s.Extra["total_chunks"])
	require.Equal(t, 35, s.Percent)
}

func TestAdvanceEmbeddingBand(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("f1", "a.pdf", 1)

	// Not in the embedding stage yet: record exists but nothing changes.
	require.True(t, tr.AdvanceEmbedding("f1", 5, 10))
	s, _ := tr.Snapshot("f1")
	require.Equal(t, 5, s.Percent)

	tr.Advance("f1", StageGeneratingEmbeddings, "Generating embeddings for 10 chunks...", intp(35), nil)
	tr.AdvanceEmbedding("f1", 0, 10)
	s, _ = tr.Snapshot("f1")
	require.Equal(t, 35, s.Percent)

	tr.AdvanceEmbedding("f1", 5, 10)
	s, _ = tr.Snapshot("f1")
	require.Equal(t, 55, s.Percent)
	require.Equal(t, "Generating embeddings... (5/10 chunks)", s.Message)
	require.Equal(t, 5, s.EmbeddingCurrent)
	require.Equal(t, 10, s.EmbeddingTotal)

	tr.AdvanceEmbedding("f1", 10, 10)
	s, _ = tr.Snapshot("f1")
	require.Equal(t, 75, s.Percent)

	tr.AdvanceEmbedding("f1", 20, 10)
	s, _ = tr.Snapshot("f1")
	require.Equal(t, 75, s.Percent)
}

func TestPercentNonDecreasingThroughPipeline(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("f1", "a.pdf", 2)
	last := 0
	check := func() {
		s, _ := tr.Snapshot("f1")
		require.GreaterOrEqual(t, s.Percent, last)
		last = s.Percent
	}
	check()
	tr.Advance("f1", StageExtractingText, "Extracting text from PDF...", nil, nil)
	check()
	tr.Advance("f1", StageChunkingText, "Breaking text into chunks...", nil, nil)
	check()
	tr.Advance("f1", StageGeneratingEmbeddings, "Generating embeddings for 7 chunks...", intp(35), nil)
	check()
	for i := 0; i <= 7; i++ {
		tr.AdvanceEmbedding("f1", i, 7)
		check()
	}
	tr.Advance("f1", StageStoringVectors, "Storing embeddings in vector database...", nil, nil)
	check()
	tr.Advance("f1", StageCompleted, "Successfully processed a.pdf!", nil, nil)
	check()
	require.Equal(t, 100, last)
}

func TestFailKeepsPercent(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("f1", "a.pdf", 1)
	tr.Advance("f1", StageChunkingText, "m", nil, nil)
	require.True(t, tr.Fail("f1", errors.New("quota exceeded")))

	s, _ := tr.Snapshot("f1")
	require.Equal(t, StageFailed, s.Stage)
	require.Equal(t, 35, s.Percent)
	require.Equal(t, "quota exceeded", s.Error)
	require.Equal(t, "Error: quota exceeded", s.Message)
	require.Equal(t, 3, s.StagesCompleted)

	// Advancing into failed without a percent also keeps it.
	tr.Advance("f1", StageFailed, "still failed", nil, nil)
	s, _ = tr.Snapshot("f1")
	require.Equal(t, 35, s.Percent)
}

func TestSnapshotTiming(t *testing.T) {
	tr, clk := newTestTracker(t)
	tr.Start("f1", "a.pdf", 1)
	tr.Advance("f1", StageExtractingText, "m", intp(25), nil)
	clk.Advance(10 * time.Second)

	s, _ := tr.Snapshot("f1")
	require.InDelta(t, 10.0, s.ElapsedSeconds, 1e-9)
	require.InDelta(t, 30.0, s.EstimatedRemainingSeconds, 1e-9)

	tr.Advance("f1", StageExtractingText, "m", intp(0), nil)
	s, _ = tr.Snapshot("f1")
	require.InDelta(t, 60.0, s.EstimatedRemainingSeconds, 1e-9)
}

func TestSnapshotIsACopy(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("f1", "a.pdf", 1)
	tr.Advance("f1", StageChunkingText, "m", nil, map[string]any{"total_chunks": 2})
	s, _ := tr.Snapshot("f1")
	s.Extra["total_chunks"] = 99
	s.Percent = 1

	again, _ := tr.Snapshot("f1")
	require.Equal(t, 2, again.Extra["total_chunks"])
	require.Equal(t, 35, again.Percent)
}

func TestScheduleCleanupRemovesOnlyTerminal(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("done", "a.pdf", 1)
	tr.Advance("done", StageCompleted, "ok", nil, nil)
	tr.Start("failed", "b.pdf", 1)
	tr.Fail("failed", errors.New("x"))
	tr.Start("running", "c.pdf", 1)
	tr.Advance("running", StageGeneratingEmbeddings, "m", intp(35), nil)

	tr.ScheduleCleanup("done", 10*time.Millisecond)
	tr.ScheduleCleanup("failed", 10*time.Millisecond)
	tr.ScheduleCleanup("running", 10*time.Millisecond)

	require.Eventually(t, func() bool { return tr.size() == 1 }, time.Second, 5*time.Millisecond)
	_, ok := tr.Snapshot("running")
	require.True(t, ok)

	// The running record is not rescheduled after it later completes.
	tr.Advance("running", StageCompleted, "ok", nil, nil)
	time.Sleep(30 * time.Millisecond)
	_, ok = tr.Snapshot("running")
	require.True(t, ok)
}

func TestScheduleCleanupSkipsRestartedRecord(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("f1", "a.pdf", 1)
	tr.Fail("f1", errors.New("quota"))
	tr.ScheduleCleanup("f1", 20*time.Millisecond)

	// Re-embed starts a fresh run that finishes before the old timer fires.
	tr.Start("f1", "a.pdf", 1)
	tr.Advance("f1", StageCompleted, "ok", nil, nil)
	time.Sleep(60 * time.Millisecond)

	snap, ok := tr.Snapshot("f1")
	require.True(t, ok)
	require.Equal(t, StageCompleted, snap.Stage)

	tr.ScheduleCleanup("f1", 10*time.Millisecond)
	require.Eventually(t, func() bool { return tr.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNotifierReceivesSnapshots(t *testing.T) {
	var mu sync.Mutex
	var got []Snapshot
	tr, _ := newTestTracker(t, WithNotifier(NotifierFunc(func(s Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})))
	tr.Start("f1", "a.pdf", 1)
	tr.Advance("f1", StageExtractingText, "m", nil, nil)
	tr.Fail("f1", errors.New("x"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	require.Equal(t, StageFailed, got[2].Stage)
}

func TestSnapshotJSONShape(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Start("f1", "a.pdf", 2)
	tr.Advance("f1", StageChunkingText, "Created 3 text chunks", nil, map[string]any{"total_chunks": 3})
	s, _ := tr.Snapshot("f1")

	b, err := json.Marshal(s)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	require.Equal(t, "chunking_text", m["stage"])
	require.EqualValues(t, 35, m["progress_percent"])
	require.EqualValues(t, 3, m["total_chunks"])
	require.EqualValues(t, 6, m["total_stages"])
	require.Contains(t, m, "elapsed_time")
	require.Contains(t, m, "estimated_remaining")
	require.Nil(t, m["error"])
}
