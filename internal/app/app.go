package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/data/db"
	"github.com/yungbote/docqa-backend/internal/data/repos"
	apphttp "github.com/yungbote/docqa-backend/internal/http"
	"github.com/yungbote/docqa-backend/internal/observability"
	"github.com/yungbote/docqa-backend/internal/platform/envutil"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
	"github.com/yungbote/docqa-backend/internal/progress"
	"github.com/yungbote/docqa-backend/internal/realtime"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *apphttp.Server
	Cfg      Config
	Repos    repos.Set
	Clients  Clients
	Vectors  vectorstore.Store
	Services Services
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	// RemoteProgress is set only when a redis bus is configured.
	RemoteProgress *realtime.ProgressCache

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a, err := build(context.Background(), log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, log *logger.Logger) (*App, error) {
	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     Version,
	})
	a.Metrics = observability.Init(log)

	theDB, err := db.Open(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	a.DB = theDB
	if err := db.AutoMigrateAll(theDB); err != nil {
		a.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	a.Repos = repos.NewSet(theDB, log)

	a.Clients, err = wireClients(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	blobs, bucket, err := resolveBlobStore(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Clients.Bucket = bucket
	a.Vectors, err = ResolveVectorStore(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.SSEHub = realtime.NewSSEHub(log)
	var pub realtime.Publisher
	if a.Clients.Bus != nil {
		pub = a.Clients.Bus
		a.RemoteProgress = realtime.NewProgressCache(cfg.Ingest.ProgressCleanup)
	}
	tracker := progress.NewTracker(log, progress.WithNotifier(realtime.NewProgressNotifier(log, a.SSEHub, pub)))

	a.Services = wireServices(log, cfg, serviceDeps{
		DB:      theDB,
		Repos:   a.Repos,
		Blobs:   blobs,
		Vectors: a.Vectors,
		OpenAI:  a.Clients.OpenAI,
		Tracker: tracker,
	})
	a.Server = wireServer(log, cfg, wireHandlers(log, cfg, a.Services, a.SSEHub, a.RemoteProgress), a.Metrics)
	return a, nil
}

// Start launches the background loops: the redis forwarder feeding the
// local hub and the redis metrics collector.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Clients.Bus != nil {
		if err := a.Clients.Bus.StartForwarder(ctx, a.RemoteProgress.Forward(a.SSEHub.Broadcast)); err != nil {
			return fmt.Errorf("start redis forwarder: %w", err)
		}
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Bus.Client())
	}
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Listening", "addr", addr)
	return a.Server.Run(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return nil
	}
	return a.Server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close(a.Log)
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.DB != nil {
		if err := db.Close(a.DB); err != nil {
			a.Log.Warn("db close failed", "error", err)
		}
		a.DB = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
