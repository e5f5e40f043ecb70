package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open for a missing key.
var ErrNotFound = errors.New("blob not found")

// Store holds uploaded PDF bytes keyed by an opaque path.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete succeeds when the key is already gone.
	Delete(ctx context.Context, key string) error
}

// PDFKey is the storage key for a file's original upload.
func PDFKey(fileID string) string {
	return "pdfs/" + fileID + ".pdf"
}
