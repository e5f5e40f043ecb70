package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/docqa-backend/internal/data/repos/chat"
	"github.com/yungbote/docqa-backend/internal/data/repos/documents"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

type FileRepo = documents.FileRepo
type ChunkRepo = documents.ChunkRepo
type AreaRepo = documents.AreaRepo

type ChatSessionRepo = chat.ChatSessionRepo
type ChatMessageRepo = chat.ChatMessageRepo

var (
	NewFileRepo        = documents.NewFileRepo
	NewChunkRepo       = documents.NewChunkRepo
	NewAreaRepo        = documents.NewAreaRepo
	NewChatSessionRepo = chat.NewChatSessionRepo
	NewChatMessageRepo = chat.NewChatMessageRepo
)

// Set is every repo the services need, built over one handle.
type Set struct {
	Files    FileRepo
	Chunks   ChunkRepo
	Areas    AreaRepo
	Sessions ChatSessionRepo
	Messages ChatMessageRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Files:    NewFileRepo(db, log),
		Chunks:   NewChunkRepo(db, log),
		Areas:    NewAreaRepo(db, log),
		Sessions: NewChatSessionRepo(db, log),
		Messages: NewChatMessageRepo(db, log),
	}
}
