package app

import (
	"context"
	"time"

	"github.com/yungbote/docqa-backend/internal/observability"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
)

// instrumentedVectorStore records latency and outcome of every call. The
// provider is folded into the operation label, e.g. "qdrant_query".
type instrumentedVectorStore struct {
	provider string
	inner    vectorstore.Store
	metrics  *observability.Metrics
}

var _ vectorstore.Store = (*instrumentedVectorStore)(nil)

func (s *instrumentedVectorStore) Upsert(ctx context.Context, vectors []vectorstore.Vector) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, vectors)
	s.observe("upsert", err, start)
	return err
}

func (s *instrumentedVectorStore) Query(ctx context.Context, q []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	start := time.Now()
	out, err := s.inner.Query(ctx, q, topK, filter)
	s.observe("query", err, start)
	return out, err
}

func (s *instrumentedVectorStore) Get(ctx context.Context, filter vectorstore.Filter, limit int) ([]vectorstore.Record, error) {
	start := time.Now()
	out, err := s.inner.Get(ctx, filter, limit)
	s.observe("get", err, start)
	return out, err
}

func (s *instrumentedVectorStore) Count(ctx context.Context, filter vectorstore.Filter) (int, error) {
	start := time.Now()
	n, err := s.inner.Count(ctx, filter)
	s.observe("count", err, start)
	return n, err
}

func (s *instrumentedVectorStore) Delete(ctx context.Context, filter vectorstore.Filter) error {
	start := time.Now()
	err := s.inner.Delete(ctx, filter)
	s.observe("delete", err, start)
	return err
}

func (s *instrumentedVectorStore) observe(op string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveVectorOp(s.provider+"_"+op, err, time.Since(start))
}
