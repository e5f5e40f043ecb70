package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/docqa-backend/internal/http/handlers"
	httpMW "github.com/yungbote/docqa-backend/internal/http/middleware"
	"github.com/yungbote/docqa-backend/internal/observability"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	HealthHandler    *httpH.HealthHandler
	FileHandler      *httpH.FileHandler
	UploadHandler    *httpH.UploadHandler
	ProgressHandler  *httpH.ProgressHandler
	SessionHandler   *httpH.SessionHandler
	AreaHandler      *httpH.AreaHandler
	TranslateHandler *httpH.TranslateHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.Health)
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/api", cfg.HealthHandler.APIInfo)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Uploads
	if cfg.UploadHandler != nil {
		r.POST("/upload-pdf-fast", cfg.UploadHandler.UploadFast)
		r.POST("/upload-pdf", cfg.UploadHandler.Upload)
		r.POST("/files/:id/embed", cfg.UploadHandler.Embed)
	}

	// Files
	if cfg.FileHandler != nil {
		r.GET("/files", cfg.FileHandler.ListFiles)
		r.GET("/files/:id", cfg.FileHandler.GetFile)
		r.GET("/files/:id/pdf", cfg.FileHandler.GetPDF)
		r.DELETE("/files/:id", cfg.FileHandler.DeleteFile)
	}

	// Areas
	if cfg.AreaHandler != nil {
		r.POST("/files/:id/areas", cfg.AreaHandler.AddArea)
		r.GET("/files/:id/areas", cfg.AreaHandler.ListAreas)
		r.DELETE("/files/:id/areas/:area_id", cfg.AreaHandler.DeleteArea)
		r.POST("/files/:id/extract-area", cfg.AreaHandler.ExtractArea)
	}

	// Progress (snapshot + SSE)
	if cfg.ProgressHandler != nil {
		r.GET("/progress/:id", cfg.ProgressHandler.GetProgress)
		r.GET("/progress/:id/stream", cfg.ProgressHandler.StreamProgress)
	}

	// Sessions + chat
	if cfg.SessionHandler != nil {
		r.POST("/sessions", cfg.SessionHandler.CreateSession)
		r.GET("/sessions", cfg.SessionHandler.ListSessions)
		r.GET("/sessions/:id/messages", cfg.SessionHandler.ListMessages)
		r.DELETE("/sessions/:id", cfg.SessionHandler.DeleteSession)
		r.POST("/sessions/:id/chat", cfg.SessionHandler.Chat)
		r.POST("/chat/:file_id", cfg.SessionHandler.ChatWithFile)
	}

	api := r.Group("/api")
	{
		if cfg.TranslateHandler != nil {
			api.POST("/translate", cfg.TranslateHandler.Translate)
		}
	}

	return r
}
