package qdrant

import "github.com/yungbote/docqa-backend/internal/platform/vectorstore"

// buildFilter turns a vectorstore.Filter into a Qdrant filter object, always
// scoped to the store namespace.
func buildFilter(namespace string, f vectorstore.Filter) map[string]any {
	must := []any{matchValue(payloadNamespaceKey, namespace)}
	for _, field := range f.Fields() {
		if v, ok := f.Equals[field]; ok {
			must = append(must, matchValue(field, v))
		}
		if vs, ok := f.In[field]; ok {
			must = append(must, map[string]any{
				"key":   field,
				"match": map[string]any{"any": vs},
			})
		}
	}
	return map[string]any{"must": must}
}

func matchValue(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}
