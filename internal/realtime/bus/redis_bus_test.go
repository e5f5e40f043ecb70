package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/realtime"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := decodeMessage(`{"channel":"progress:f1","event":"progress","data":{"stage":"completed"}}`)
	if err != nil {
		t.Fatalf("decodeMessage: %v", err)
	}
	if msg.Channel != "progress:f1" || msg.Event != realtime.SSEEventProgress {
		t.Fatalf("msg: got=%+v", msg)
	}
	if !realtime.IsTerminalProgress(msg) {
		t.Fatalf("decoded completed snapshot should be terminal")
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := decodeMessage("not json"); err == nil {
		t.Fatalf("want error for invalid json")
	}
	if _, err := decodeMessage(`{"event":"progress"}`); err == nil {
		t.Fatalf("want error for missing channel")
	}
}

func TestNewRedisBusRequiresAddr(t *testing.T) {
	if _, err := NewRedisBus(context.Background(), logger.Nop(), RedisConfig{}); err == nil {
		t.Fatalf("want error without addr")
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := NewRedisBus(ctx, logger.Nop(), RedisConfig{Addr: addr, Channel: "docqa:test:" + time.Now().Format("150405.000")})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer b.Close()

	got := make(chan realtime.SSEMessage, 1)
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Publish(ctx, realtime.SSEMessage{Channel: "progress:x", Event: realtime.SSEEventProgress}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case m := <-got:
		if m.Channel != "progress:x" {
			t.Fatalf("channel: got=%s", m.Channel)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}
}
