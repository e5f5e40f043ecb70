package bus

import (
	"context"

	"github.com/yungbote/docqa-backend/internal/realtime"
)

// Bus carries SSE messages between server instances. With the forwarder
// feeding a realtime.ProgressCache, a progress request can be served by a
// different instance than the one running the upload.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
