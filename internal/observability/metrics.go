package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/docqa-backend/internal/platform/envutil"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

// Metrics holds the process-wide Prometheus-text counters. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec

	ingestStage   *HistogramVec
	ingestResults *CounterVec
	embeddedTotal *Counter

	vectorOps     *CounterVec
	vectorLatency *HistogramVec

	retrievalSnippets *CounterVec

	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the metrics installed by Init, or nil.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("docqa_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"docqa_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("docqa_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("docqa_llm_requests_total", "LLM requests by model/endpoint/status.", []string{"model", "endpoint", "status"}),
		llmLatency: NewHistogramVec(
			"docqa_llm_request_duration_seconds",
			"LLM request latency in seconds by model/endpoint/status.",
			[]string{"model", "endpoint", "status"},
			[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		ingestStage: NewHistogramVec(
			"docqa_ingest_stage_duration_seconds",
			"Upload pipeline stage duration by pipeline/stage/status.",
			[]string{"pipeline", "stage", "status"},
			[]float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		ingestResults:     NewCounterVec("docqa_ingest_results_total", "Upload pipeline outcomes by pipeline/result.", []string{"pipeline", "result"}),
		embeddedTotal:     NewCounter("docqa_embedded_chunks_total", "Chunks embedded and stored as vectors."),
		vectorOps:         NewCounterVec("docqa_vector_operations_total", "Vector store calls by operation/status.", []string{"operation", "status"}),
		vectorLatency:     NewHistogramVec("docqa_vector_operation_duration_seconds", "Vector store call latency by operation.", []string{"operation"}, nil),
		retrievalSnippets: NewCounterVec("docqa_retrieval_snippets_total", "Snippets placed into chat prompts by kind.", []string{"kind"}),
		redisUp:           NewGauge("docqa_redis_up", "1 when the last redis ping succeeded."),
		redisPing:         NewGauge("docqa_redis_ping_seconds", "Latency of the last redis ping."),
	}
}

// Handler serves the exposition format for a /metrics route.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_ = m.WritePrometheus(w)
	})
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency,
		m.ingestStage, m.ingestResults, m.embeddedTotal,
		m.vectorOps, m.vectorLatency,
		m.retrievalSnippets,
		m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration) {
	if m == nil {
		return
	}
	model = orUnknown(model)
	endpoint = orUnknown(endpoint)
	if strings.TrimSpace(status) == "" {
		status = "0"
	}
	m.llmRequests.Inc(model, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, endpoint, status)
	}
}

func (m *Metrics) ObserveIngestStage(pipeline, stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.ingestStage.Observe(dur.Seconds(), orUnknown(pipeline), orUnknown(stage), orUnknown(status))
}

func (m *Metrics) IncIngestResult(pipeline, result string) {
	if m == nil {
		return
	}
	m.ingestResults.Inc(orUnknown(pipeline), orUnknown(result))
}

func (m *Metrics) AddEmbedded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.embeddedTotal.Add(float64(n))
}

func (m *Metrics) ObserveVectorOp(op string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.vectorOps.Inc(orUnknown(op), status)
	m.vectorLatency.Observe(dur.Seconds(), orUnknown(op))
}

func (m *Metrics) AddRetrievalSnippets(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retrievalSnippets.Add(float64(n), orUnknown(kind))
}

// StartRedisCollector pings rdb on METRICS_SCRAPE_INTERVAL_SECONDS until ctx
// is done.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	interval := time.Duration(envutil.Int("METRICS_SCRAPE_INTERVAL_SECONDS", 15)) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
