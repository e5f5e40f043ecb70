package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"
)

type memEntry struct {
	values []float32
	text   string
	meta   map[string]any
	seq    int64
}

// Memory is an in-process Store using exact cosine similarity. It backs
// local development and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	seq     int64
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memEntry)}
}

func (m *Memory) Upsert(ctx context.Context, vectors []Vector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, v := range vectors {
		if v.ID == "" || len(v.Values) == 0 {
			return fmt.Errorf("vector %q: %w", v.ID, ErrInvalidVector)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		m.seq++
		seq := m.seq
		if old, ok := m.entries[v.ID]; ok {
			seq = old.seq
		}
		m.entries[v.ID] = &memEntry{
			values: append([]float32(nil), v.Values...),
			text:   v.Text,
			meta:   maps.Clone(v.Metadata),
			seq:    seq,
		}
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, q []float32, topK int, filter Filter) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(q) == 0 {
		return nil, fmt.Errorf("empty query: %w", ErrInvalidVector)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	m.mu.RLock()
	out := make([]Match, 0, len(m.entries))
	for id, e := range m.entries {
		if !filter.Matches(e.meta) {
			continue
		}
		out = append(out, Match{
			ID:       id,
			Score:    cosine(q, e.values),
			Text:     e.text,
			Metadata: maps.Clone(e.meta),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Get returns matching entries in insertion order.
func (m *Memory) Get(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	type hit struct {
		rec Record
		seq int64
	}
	hits := make([]hit, 0)
	for id, e := range m.entries {
		if filter.Matches(e.meta) {
			hits = append(hits, hit{rec: Record{ID: id, Text: e.text, Metadata: maps.Clone(e.meta)}, seq: e.seq})
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Record, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, filter Filter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if filter.Matches(e.meta) {
			n++
		}
	}
	return n, ctx.Err()
}

// Delete removes matching entries. An empty filter is rejected rather than
// wiping the index.
func (m *Memory) Delete(ctx context.Context, filter Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filter.Empty() {
		return fmt.Errorf("delete without filter: %w", ErrInvalidFilter)
	}
	if err := filter.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if filter.Matches(e.meta) {
			delete(m.entries, id)
		}
	}
	return nil
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
