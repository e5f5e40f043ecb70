package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatSession binds a conversation to an ordered, non-empty list of files.
type ChatSession struct {
	ID   uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null" json:"name"`

	// FileIDs is a JSON array of file id strings, in the order the session was created with.
	FileIDs datatypes.JSON `gorm:"column:file_ids;not null" json:"file_ids"`

	// Per-session message sequencing.
	NextSeq int64 `gorm:"column:next_seq;not null;default:0" json:"-"`

	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	LastActivity time.Time `gorm:"column:last_activity;not null;index" json:"last_activity"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

func (s *ChatSession) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastActivity.IsZero() {
		s.LastActivity = now
	}
	return nil
}

// FileIDList decodes FileIDs. It does not accept legacy encodings; run the
// session file id migration first.
func (s *ChatSession) FileIDList() ([]string, error) {
	if len(s.FileIDs) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(s.FileIDs, &out); err != nil {
		return nil, fmt.Errorf("decode file_ids of session %s: %w", s.ID, err)
	}
	return out, nil
}

func (s *ChatSession) SetFileIDs(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	s.FileIDs = datatypes.JSON(b)
	return nil
}
