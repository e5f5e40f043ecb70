package app

import (
	"context"
	"fmt"

	"github.com/yungbote/docqa-backend/internal/platform/gcp"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/openai"
	"github.com/yungbote/docqa-backend/internal/realtime/bus"
)

var newRedisBus = bus.NewRedisBus

type Clients struct {
	OpenAI openai.Client
	// Bus is nil when REDIS_ADDR is unset; progress then stays in-process.
	Bus    *bus.RedisBus
	Bucket *gcp.Bucket
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	oaCfg, err := openai.ConfigFromEnv()
	if err != nil {
		return out, fmt.Errorf("openai config: %w", err)
	}
	oa, err := openai.NewClient(log, oaCfg)
	if err != nil {
		return out, fmt.Errorf("init openai: %w", err)
	}
	out.OpenAI = oa
	log.Info("OpenAI client ready", "model", oaCfg.Model, "embed_model", oaCfg.EmbedModel)

	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set; progress events stay in-process")
		return out, nil
	}
	b, err := newRedisBus(ctx, log, bus.RedisConfig{Addr: cfg.RedisAddr, Channel: cfg.RedisChannel})
	if err != nil {
		return out, fmt.Errorf("init redis bus: %w", err)
	}
	out.Bus = b
	return out, nil
}

func (c Clients) Close(log *logger.Logger) {
	if c.Bus != nil {
		if err := c.Bus.Close(); err != nil {
			log.Warn("Redis bus close failed", "error", err)
		}
	}
	if c.Bucket != nil {
		if err := c.Bucket.Close(); err != nil {
			log.Warn("Bucket close failed", "error", err)
		}
	}
}
