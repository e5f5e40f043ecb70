package progress

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

// Record is the in-memory state of one upload.
type Record struct {
	FileID          string
	Filename        string
	TotalPages      int
	Stage           Stage
	Message         string
	Percent         int
	StartTime       time.Time
	StageStart      time.Time
	Error           string
	StagesCompleted int

	EmbeddingCurrent int
	EmbeddingTotal   int

	Extra map[string]any
}

// Snapshot is a copy of a Record with timing computed at read time.
type Snapshot struct {
	Record
	ElapsedSeconds            float64
	EstimatedRemainingSeconds float64
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 16+len(s.Extra))
	maps.Copy(out, s.Extra)
	out["file_id"] = s.FileID
	out["filename"] = s.Filename
	out["total_pages"] = s.TotalPages
	out["stage"] = s.Stage
	out["progress_percent"] = s.Percent
	out["message"] = s.Message
	out["start_time"] = float64(s.StartTime.UnixMilli()) / 1000
	out["current_stage_start"] = float64(s.StageStart.UnixMilli()) / 1000
	if s.Error != "" {
		out["error"] = s.Error
	} else {
		out["error"] = nil
	}
	out["estimated_total_time"] = defaultEstimatedTotalSeconds
	out["stages_completed"] = s.StagesCompleted
	out["total_stages"] = TotalStages
	if s.EmbeddingTotal > 0 {
		out["embedding_current"] = s.EmbeddingCurrent
		out["embedding_total"] = s.EmbeddingTotal
	}
	out["elapsed_time"] = s.ElapsedSeconds
	out["estimated_remaining"] = s.EstimatedRemainingSeconds
	return json.Marshal(out)
}

// Notifier receives a snapshot after every mutation. It is called without
// the tracker lock held.
type Notifier interface {
	NotifyProgress(s Snapshot)
}

type NotifierFunc func(Snapshot)

func (f NotifierFunc) NotifyProgress(s Snapshot) { f(s) }

// Tracker owns the progress records of in-flight uploads. One mutex guards
// the whole map.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record

	log      *logger.Logger
	notifier Notifier
	now      func() time.Time
}

type Option func(*Tracker)

func WithNotifier(n Notifier) Option { return func(t *Tracker) { t.notifier = n } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func NewTracker(log *logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		records: make(map[string]*Record),
		log:     log.With("service", "ProgressTracker"),
		now:     time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start creates a record at the uploading stage, replacing any prior one.
func (t *Tracker) Start(fileID, filename string, totalPages int) {
	now := t.now()
	t.mu.Lock()
	rec := &Record{
		FileID:     fileID,
		Filename:   filename,
		TotalPages: totalPages,
		Stage:      StageUploading,
		Message:    "File uploaded successfully",
		Percent:    startPercent,
		StartTime:  now,
		StageStart: now,
	}
	t.records[fileID] = rec
	snap := t.snapshotLocked(rec, now)
	t.mu.Unlock()
	t.notify(snap)
}

// Advance moves a record to stage. A nil percent selects the stage default;
// Failed keeps the current percent. Returns false when fileID is unknown.
func (t *Tracker) Advance(fileID string, stage Stage, message string, percent *int, extra map[string]any) bool {
	now := t.now()
	t.mu.Lock()
	rec, ok := t.records[fileID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	rec.Stage = stage
	rec.Message = message
	rec.StageStart = now
	switch {
	case percent != nil:
		rec.Percent = *percent
	default:
		if p, ok := stage.DefaultPercent(); ok {
			rec.Percent = p
		}
	}
	for k, v := range extra {
		if k == "total_pages" {
			if n, ok := v.(int); ok {
				rec.TotalPages = n
				continue
			}
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any, len(extra))
		}
		rec.Extra[k] = v
	}
	if info, ok := stageTable[stage]; ok {
		rec.StagesCompleted = info.ordinal + 1
	}
	snap := t.snapshotLocked(rec, now)
	t.mu.Unlock()
	t.notify(snap)
	return true
}

// AdvanceEmbedding records embedding sub-progress. It only takes effect while
// the record is in the generating_embeddings stage; the return value reports
// whether the record exists.
func (t *Tracker) AdvanceEmbedding(fileID string, current, total int) bool {
	now := t.now()
	t.mu.Lock()
	rec, ok := t.records[fileID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if rec.Stage != StageGeneratingEmbeddings {
		t.mu.Unlock()
		return true
	}
	rec.Percent = EmbeddingPercent(current, total)
	rec.Message = fmt.Sprintf("Generating embeddings... (%d/%d chunks)", current, total)
	rec.EmbeddingCurrent = current
	rec.EmbeddingTotal = total
	snap := t.snapshotLocked(rec, now)
	t.mu.Unlock()
	t.notify(snap)
	return true
}

// Fail marks the record failed. Percent is left as is.
func (t *Tracker) Fail(fileID string, err error) bool {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	now := t.now()
	t.mu.Lock()
	rec, ok := t.records[fileID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	rec.Stage = StageFailed
	rec.Error = msg
	rec.Message = "Error: " + msg
	snap := t.snapshotLocked(rec, now)
	t.mu.Unlock()
	t.notify(snap)
	return true
}

func (t *Tracker) Snapshot(fileID string) (Snapshot, bool) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[fileID]
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshotLocked(rec, now), true
}

// ScheduleCleanup deletes the record after delay if it is then terminal. A
// record that is still running is left alone and not rescheduled, and a
// record replaced by a later Start is not touched.
func (t *Tracker) ScheduleCleanup(fileID string, delay time.Duration) {
	t.mu.Lock()
	scheduled, ok := t.records[fileID]
	t.mu.Unlock()
	if !ok {
		return
	}
	time.AfterFunc(delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if rec, ok := t.records[fileID]; ok && rec == scheduled && rec.Stage.Terminal() {
			delete(t.records, fileID)
			t.log.Debug("Progress record cleaned up", "file_id", fileID, "stage", rec.Stage)
		}
	})
}

func (t *Tracker) Delete(fileID string) {
	t.mu.Lock()
	delete(t.records, fileID)
	t.mu.Unlock()
}

func (t *Tracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *Tracker) snapshotLocked(rec *Record, now time.Time) Snapshot {
	cp := *rec
	cp.Extra = maps.Clone(rec.Extra)

	elapsed := now.Sub(rec.StartTime).Seconds()
	remaining := float64(defaultEstimatedTotalSeconds)
	if rec.Percent > 0 {
		remaining = max(0, elapsed/float64(rec.Percent)*100-elapsed)
	}
	return Snapshot{Record: cp, ElapsedSeconds: elapsed, EstimatedRemainingSeconds: remaining}
}

func (t *Tracker) notify(s Snapshot) {
	if t.notifier == nil {
		return
	}
	t.notifier.NotifyProgress(s)
}
