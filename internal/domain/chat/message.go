package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	ModeSingleDoc = "single-doc"
	ModeMultiDoc  = "multi-doc"
)

type ChatMessage struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:varchar(36);not null;index:idx_chat_message_session_seq,unique,priority:1" json:"session_id"`
	Seq       int64     `gorm:"column:seq;not null;index:idx_chat_message_session_seq,unique,priority:2" json:"-"`

	Role    string `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Content string `gorm:"column:content;type:text;not null" json:"content"`

	// Sources is a JSON array of the context snippets an assistant reply was built from.
	Sources      datatypes.JSON `gorm:"column:sources" json:"sources,omitempty"`
	DocumentMode string         `gorm:"column:document_mode;type:varchar(16)" json:"document_mode,omitempty"`

	CreatedAt time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

func (m *ChatMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *ChatMessage) SourceList() []string {
	if len(m.Sources) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(m.Sources, &out); err != nil {
		return nil
	}
	return out
}

func EncodeSources(sources []string) datatypes.JSON {
	if len(sources) == 0 {
		return nil
	}
	b, err := json.Marshal(sources)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
