package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
)

const (
	payloadNamespaceKey = "_docqa_namespace"
	payloadVectorIDKey  = "_docqa_vector_id"
	payloadTextKey      = "_docqa_text"
	maxErrorBodyBytes   = 1024
	maxResponseBytes    = 8 << 20
)

var pointIDNamespaceUUID = uuid.MustParse("6f0c2a4e-9a51-4c57-8d0e-3b1f6c2d7e10")

// Store is a vectorstore.Store backed by one Qdrant collection over its
// REST API.
type Store struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

var _ vectorstore.Store = (*Store)(nil)

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type point struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// New validates cfg and checks that the collection is reachable and sized
// for cfg.VectorDim, creating it when allowed.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := newStore(log, cfg, &http.Client{Timeout: 10 * time.Second})
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	log.Info("Qdrant vector store selected",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"namespace", cfg.Namespace,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func newStore(log *logger.Logger, cfg Config, client *http.Client) *Store {
	return &Store{
		log:     log.With("service", "QdrantStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    client,
	}
}

func (s *Store) Upsert(ctx context.Context, vectors []vectorstore.Vector) error {
	const op = "upsert"
	if len(vectors) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(vectors))
	for _, v := range vectors {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "vector id is required", vectorstore.ErrInvalidVector)
		}
		if len(v.Values) != s.cfg.VectorDim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("vector %q dimension mismatch: expected=%d got=%d", id, s.cfg.VectorDim, len(v.Values)),
				vectorstore.ErrInvalidVector)
		}
		payload := make(map[string]any, len(v.Metadata)+3)
		for k, val := range v.Metadata {
			payload[k] = val
		}
		payload[payloadNamespaceKey] = s.cfg.Namespace
		payload[payloadVectorIDKey] = id
		payload[payloadTextKey] = v.Text
		points = append(points, map[string]any{
			"id":      s.pointID(id),
			"vector":  v.Values,
			"payload": payload,
		})
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (s *Store) Query(ctx context.Context, q []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	const op = "query"
	if len(q) != s.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(q)),
			vectorstore.ErrInvalidVector)
	}
	if err := filter.Validate(); err != nil {
		return nil, opErr(op, OperationErrorValidation, "invalid filter", err)
	}
	if topK <= 0 {
		topK = 10
	}
	req := map[string]any{
		"vector":       q,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
		"filter":       buildFilter(s.cfg.Namespace, filter),
	}
	var hits []point
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &hits); err != nil {
		return nil, err
	}
	out := make([]vectorstore.Match, 0, len(hits))
	for _, h := range hits {
		id, text, meta := splitPayload(h)
		if id == "" {
			continue
		}
		out = append(out, vectorstore.Match{ID: id, Score: h.Score, Text: text, Metadata: meta})
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, filter vectorstore.Filter, limit int) ([]vectorstore.Record, error) {
	const op = "scroll"
	if err := filter.Validate(); err != nil {
		return nil, opErr(op, OperationErrorValidation, "invalid filter", err)
	}
	if limit <= 0 {
		limit = 100
	}
	req := map[string]any{
		"filter":       buildFilter(s.cfg.Namespace, filter),
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	var res struct {
		Points []point `json:"points"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/scroll"), req, &res); err != nil {
		return nil, err
	}
	out := make([]vectorstore.Record, 0, len(res.Points))
	for _, p := range res.Points {
		id, text, meta := splitPayload(p)
		if id == "" {
			continue
		}
		out = append(out, vectorstore.Record{ID: id, Text: text, Metadata: meta})
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter vectorstore.Filter) (int, error) {
	const op = "count"
	if err := filter.Validate(); err != nil {
		return 0, opErr(op, OperationErrorValidation, "invalid filter", err)
	}
	req := map[string]any{
		"filter": buildFilter(s.cfg.Namespace, filter),
		"exact":  true,
	}
	var res struct {
		Count int `json:"count"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/count"), req, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Delete removes every point matching filter. An empty filter is rejected.
func (s *Store) Delete(ctx context.Context, filter vectorstore.Filter) error {
	const op = "delete"
	if filter.Empty() {
		return opErr(op, OperationErrorValidation, "delete requires a filter", vectorstore.ErrInvalidFilter)
	}
	if err := filter.Validate(); err != nil {
		return opErr(op, OperationErrorValidation, "invalid filter", err)
	}
	req := map[string]any{"filter": buildFilter(s.cfg.Namespace, filter)}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil)
}

func (s *Store) ensureCollection(ctx context.Context) error {
	const op = "bootstrap"
	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	var oe *OperationError
	if errors.As(err, &oe) && oe.StatusCode == http.StatusNotFound && s.cfg.CreateCollection {
		s.log.Info("Creating Qdrant collection", "collection", s.cfg.Collection, "vector_dim", s.cfg.VectorDim)
		create := map[string]any{
			"vectors": map[string]any{"size": s.cfg.VectorDim, "distance": "Cosine"},
		}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), create, nil); err != nil {
			return err
		}
		return s.ensurePayloadIndexes(ctx)
	}
	if err != nil {
		return err
	}
	if size := info.Config.Params.Vectors.Size; size != 0 && size != s.cfg.VectorDim {
		return opErr(op, OperationErrorValidation,
			fmt.Sprintf("collection %q vector size mismatch: expected=%d actual=%d", s.cfg.Collection, s.cfg.VectorDim, size), nil)
	}
	if d := info.Config.Params.Vectors.Distance; d != "" && !strings.EqualFold(d, "cosine") {
		s.log.Warn("Qdrant collection is not cosine; scores are not similarities", "distance", d)
	}
	return nil
}

func (s *Store) ensurePayloadIndexes(ctx context.Context) error {
	for _, field := range []string{payloadNamespaceKey, "file_id", "chunk_type", "area_id"} {
		req := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := s.doJSON(ctx, "create_index", http.MethodPut, s.collectionPath("/index?wait=true"), req, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode envelope failed", err)
	}
	if msg := envelopeStatusError(env.Status); msg != "" {
		return &OperationError{Code: OperationErrorRequestFailed, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	return opErr(op, OperationErrorTransportFailed, "request failed", err)
}

func envelopeStatusError(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if strings.EqualFold(str, "ok") {
			return ""
		}
		return fmt.Sprintf("status=%q", str)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return "status=" + status
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

// splitPayload separates the adapter's bookkeeping keys from caller metadata.
func splitPayload(p point) (id, text string, meta map[string]any) {
	meta = make(map[string]any, len(p.Payload))
	for k, v := range p.Payload {
		switch k {
		case payloadVectorIDKey:
			id, _ = v.(string)
		case payloadTextKey:
			text, _ = v.(string)
		case payloadNamespaceKey:
		default:
			meta[k] = v
		}
	}
	return strings.TrimSpace(id), text, meta
}

// pointID derives a stable UUID so re-upserting an id overwrites its point.
func (s *Store) pointID(vectorID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(s.cfg.Namespace+"|"+vectorID)).String()
}

func (s *Store) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}
