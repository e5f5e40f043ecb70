// Package vectorstore defines the similarity index the retrieval pipeline
// writes chunk and area embeddings to.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Vector is one indexed entry. Text is stored alongside so query results can
// be rendered without a relational lookup.
type Vector struct {
	ID       string
	Values   []float32
	Text     string
	Metadata map[string]any
}

// Match is a query hit. Higher Score is more similar.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Record is an entry returned by a metadata-only lookup.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Filter is a conjunction over metadata fields. Equals requires field == value;
// In requires the field to equal one of the values. An empty filter matches all.
type Filter struct {
	Equals map[string]any
	In     map[string][]any
}

func Eq(field string, value any) Filter {
	return Filter{Equals: map[string]any{field: value}}
}

// And returns a copy of f with another equality condition.
func (f Filter) And(field string, value any) Filter {
	out := f.clone()
	if out.Equals == nil {
		out.Equals = map[string]any{}
	}
	out.Equals[field] = value
	return out
}

// AnyOf returns a copy of f with a membership condition.
func (f Filter) AnyOf(field string, values ...any) Filter {
	out := f.clone()
	if out.In == nil {
		out.In = map[string][]any{}
	}
	out.In[field] = append([]any(nil), values...)
	return out
}

func (f Filter) Empty() bool { return len(f.Equals) == 0 && len(f.In) == 0 }

func (f Filter) Validate() error {
	for k := range f.Equals {
		if strings.TrimSpace(k) == "" {
			return ErrInvalidFilter
		}
	}
	for k, vs := range f.In {
		if strings.TrimSpace(k) == "" || len(vs) == 0 {
			return fmt.Errorf("field %q: %w", k, ErrInvalidFilter)
		}
	}
	return nil
}

// Fields lists the filtered fields in a stable order.
func (f Filter) Fields() []string {
	out := make([]string, 0, len(f.Equals)+len(f.In))
	for k := range f.Equals {
		out = append(out, k)
	}
	for k := range f.In {
		if _, dup := f.Equals[k]; !dup {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Matches evaluates f against a metadata bag.
func (f Filter) Matches(meta map[string]any) bool {
	for k, want := range f.Equals {
		got, ok := meta[k]
		if !ok || !scalarEqual(got, want) {
			return false
		}
	}
	for k, wants := range f.In {
		got, ok := meta[k]
		if !ok {
			return false
		}
		hit := false
		for _, w := range wants {
			if scalarEqual(got, w) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func (f Filter) clone() Filter {
	out := Filter{}
	if f.Equals != nil {
		out.Equals = make(map[string]any, len(f.Equals))
		for k, v := range f.Equals {
			out.Equals[k] = v
		}
	}
	if f.In != nil {
		out.In = make(map[string][]any, len(f.In))
		for k, v := range f.In {
			out.In[k] = append([]any(nil), v...)
		}
	}
	return out
}

// scalarEqual compares metadata values that may have been through a JSON round
// trip, so all numbers compare as float64.
func scalarEqual(a, b any) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

var (
	ErrInvalidFilter = errors.New("invalid vector filter")
	ErrInvalidVector = errors.New("invalid vector")
)

// Store is the similarity index. Implementations must be safe for
// concurrent use.
type Store interface {
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, q []float32, topK int, filter Filter) ([]Match, error)
	Get(ctx context.Context, filter Filter, limit int) ([]Record, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Delete(ctx context.Context, filter Filter) error
}
