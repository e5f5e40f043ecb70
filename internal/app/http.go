package app

import (
	apphttp "github.com/yungbote/docqa-backend/internal/http"
	httpH "github.com/yungbote/docqa-backend/internal/http/handlers"
	"github.com/yungbote/docqa-backend/internal/observability"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/realtime"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	File      *httpH.FileHandler
	Upload    *httpH.UploadHandler
	Progress  *httpH.ProgressHandler
	Session   *httpH.SessionHandler
	Area      *httpH.AreaHandler
	Translate *httpH.TranslateHandler
}

func wireHandlers(log *logger.Logger, cfg Config, svc Services, hub *realtime.SSEHub, remote *realtime.ProgressCache) Handlers {
	log.Info("Wiring handlers...")
	progressH := httpH.NewProgressHandler(log, svc.Tracker, hub)
	if remote != nil {
		progressH.WithRemote(remote)
	}
	return Handlers{
		Health:    httpH.NewHealthHandler(),
		File:      httpH.NewFileHandler(log, svc.Files),
		Upload:    httpH.NewUploadHandler(log, svc.Ingest, cfg.Ingest.MaxFileSize),
		Progress:  progressH,
		Session:   httpH.NewSessionHandler(log, svc.Sessions, svc.Chat),
		Area:      httpH.NewAreaHandler(log, svc.Areas),
		Translate: httpH.NewTranslateHandler(svc.Translate),
	}
}

func wireServer(log *logger.Logger, cfg Config, h Handlers, metrics *observability.Metrics) *apphttp.Server {
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:              log,
		ServiceName:      cfg.ServiceName,
		CORSOrigins:      cfg.CORSOrigins,
		Metrics:          metrics,
		HealthHandler:    h.Health,
		FileHandler:      h.File,
		UploadHandler:    h.Upload,
		ProgressHandler:  h.Progress,
		SessionHandler:   h.Session,
		AreaHandler:      h.Area,
		TranslateHandler: h.Translate,
	})
}
