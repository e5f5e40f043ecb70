package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/data/repos"
	"github.com/yungbote/docqa-backend/internal/ingestion/extractor"
	"github.com/yungbote/docqa-backend/internal/platform/blob"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/openai"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
	"github.com/yungbote/docqa-backend/internal/progress"
	"github.com/yungbote/docqa-backend/internal/retrieval"
	"github.com/yungbote/docqa-backend/internal/services"
)

type Services struct {
	Sessions  services.SessionService
	Files     services.FileService
	Areas     services.AreaService
	Ingest    services.IngestService
	Chat      services.ChatService
	Translate services.TranslateService

	Tracker   *progress.Tracker
	Assembler *retrieval.Assembler
}

type serviceDeps struct {
	DB      *gorm.DB
	Repos   repos.Set
	Blobs   blob.Store
	Vectors vectorstore.Store
	OpenAI  openai.Client
	Tracker *progress.Tracker
}

func wireServices(log *logger.Logger, cfg Config, deps serviceDeps) Services {
	log.Info("Wiring services...")
	ex := extractor.New()
	asm := retrieval.NewAssembler(log, deps.Repos, deps.Vectors, deps.OpenAI, cfg.Retrieval)

	sessions := services.NewSessionService(deps.DB, log, deps.Repos)
	files := services.NewFileService(deps.DB, log, deps.Repos, sessions, deps.Blobs, deps.Vectors, deps.Tracker)

	return Services{
		Sessions:  sessions,
		Files:     files,
		Areas:     services.NewAreaService(log, deps.Repos, files, ex, deps.OpenAI, deps.Vectors),
		Ingest:    services.NewIngestService(log, deps.Repos, deps.Blobs, ex, deps.OpenAI, deps.Vectors, deps.Tracker, cfg.Ingest),
		Chat:      services.NewChatService(log, deps.Repos, sessions, asm, deps.OpenAI),
		Translate: services.NewTranslateService(log, deps.OpenAI),
		Tracker:   deps.Tracker,
		Assembler: asm,
	}
}
