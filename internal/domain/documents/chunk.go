package documents

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentChunk is one chunker output for a file. ChunkIndex is contiguous from 0.
type DocumentChunk struct {
	ID         uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	FileID     uuid.UUID `gorm:"type:varchar(36);not null;index:idx_document_text_file_chunk,unique,priority:1" json:"file_id"`
	ChunkIndex int       `gorm:"column:chunk_index;not null;index:idx_document_text_file_chunk,unique,priority:2" json:"chunk_index"`
	Content    string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (DocumentChunk) TableName() string { return "document_text" }

func (c *DocumentChunk) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ChunkVectorID is the vector index id for chunk i of a file.
func ChunkVectorID(fileID uuid.UUID, i int) string {
	return fmt.Sprintf("%s_chunk_%d", fileID, i)
}

// AreaVectorID is the vector index id for an area.
func AreaVectorID(areaID uuid.UUID) string {
	return "area_" + areaID.String()
}
