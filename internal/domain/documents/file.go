package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	FileStatusProcessing    = "processing"
	FileStatusTextExtracted = "text_extracted"
	FileStatusCompleted     = "completed"
	FileStatusFailed        = "failed"
)

// File is one uploaded PDF. Status only moves forward, except that a failed
// embedding pass leaves it at text_extracted.
type File struct {
	ID         uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	Filename   string    `gorm:"column:filename;not null" json:"filename"`
	FileSize   int64     `gorm:"column:file_size;not null;default:0" json:"file_size"`
	TotalPages int       `gorm:"column:total_pages;not null;default:0" json:"total_pages"`
	Status     string    `gorm:"column:status;not null;default:'processing';index" json:"status"`

	// BlobKey addresses the original bytes in the configured blob store.
	BlobKey string `gorm:"column:blob_key;not null;default:''" json:"-"`

	UploadTime time.Time `gorm:"column:upload_time;not null;index" json:"upload_time"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (File) TableName() string { return "files" }

func (f *File) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.UploadTime.IsZero() {
		f.UploadTime = time.Now().UTC()
	}
	return nil
}

// HasEmbeddings reports whether vector search is available for the file.
func (f *File) HasEmbeddings() bool {
	return f != nil && f.Status == FileStatusCompleted
}
