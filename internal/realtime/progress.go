package realtime

import (
	"context"
	"time"

	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/progress"
)

// ProgressChannel is the SSE channel carrying one file's progress snapshots.
func ProgressChannel(fileID string) string {
	return "progress:" + fileID
}

// Publisher fans a message out beyond this process.
type Publisher interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

// ProgressNotifier turns tracker snapshots into SSE messages. With a
// Publisher the message goes through it (and comes back to the hub via the
// forwarder); otherwise it is broadcast locally.
type ProgressNotifier struct {
	log *logger.Logger
	hub *SSEHub
	pub Publisher
}

var _ progress.Notifier = (*ProgressNotifier)(nil)

func NewProgressNotifier(log *logger.Logger, hub *SSEHub, pub Publisher) *ProgressNotifier {
	return &ProgressNotifier{log: log.With("component", "ProgressNotifier"), hub: hub, pub: pub}
}

func (n *ProgressNotifier) NotifyProgress(s progress.Snapshot) {
	msg := SSEMessage{Channel: ProgressChannel(s.FileID), Event: SSEEventProgress, Data: s}
	if n.pub == nil {
		n.hub.Broadcast(msg)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.pub.Publish(ctx, msg); err != nil {
		n.log.Warn("Progress publish failed; broadcasting locally", "file_id", s.FileID, "error", err)
		n.hub.Broadcast(msg)
	}
}

// IsTerminalProgress reports whether msg carries a completed or failed snapshot.
func IsTerminalProgress(msg SSEMessage) bool {
	if msg.Event != SSEEventProgress {
		return false
	}
	switch d := msg.Data.(type) {
	case progress.Snapshot:
		return d.Stage.Terminal()
	case map[string]any:
		stage, _ := d["stage"].(string)
		return progress.Stage(stage).Terminal()
	}
	return false
}
