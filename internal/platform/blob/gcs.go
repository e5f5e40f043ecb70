package blob

import (
	"context"
	"errors"
	"io"

	"github.com/yungbote/docqa-backend/internal/platform/gcp"
)

// GCS adapts a gcp.Bucket to Store.
type GCS struct {
	bucket *gcp.Bucket
}

func NewGCS(bucket *gcp.Bucket) *GCS {
	return &GCS{bucket: bucket}
}

func (g *GCS) Put(ctx context.Context, key string, r io.Reader) error {
	return g.bucket.Put(ctx, key, r)
}

func (g *GCS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := g.bucket.Open(ctx, key)
	if errors.Is(err, gcp.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	return rc, err
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	return g.bucket.Delete(ctx, key)
}
