package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/docqa-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Documents
		// =========================
		&types.File{},
		&types.DocumentChunk{},
		&types.DocumentArea{},

		// =========================
		// Chat
		// =========================
		&types.ChatSession{},
		&types.ChatMessage{},
	)
}
