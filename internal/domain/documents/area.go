package documents

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AreaType string

const (
	AreaProblem  AreaType = "problem"
	AreaSolution AreaType = "solution"
)

func ParseAreaType(s string) (AreaType, bool) {
	switch AreaType(strings.ToLower(strings.TrimSpace(s))) {
	case AreaProblem:
		return AreaProblem, true
	case AreaSolution:
		return AreaSolution, true
	}
	return "", false
}

// ChunkType is the vector metadata tag for entries embedded from this kind of area.
func (t AreaType) ChunkType() string { return string(t) + "_area" }

const (
	ChunkTypeGeneral      = "general_text"
	ChunkTypeProblemArea  = "problem_area"
	ChunkTypeSolutionArea = "solution_area"
)

// Coordinates are in page space (72 dpi points, origin top-left).
type Coordinates struct {
	X      float64 `gorm:"column:x;not null;default:0" json:"x"`
	Y      float64 `gorm:"column:y;not null;default:0" json:"y"`
	Width  float64 `gorm:"column:width;not null;default:0" json:"width"`
	Height float64 `gorm:"column:height;not null;default:0" json:"height"`
}

func (c Coordinates) Map() map[string]any {
	return map[string]any{"x": c.X, "y": c.Y, "width": c.Width, "height": c.Height}
}

type DocumentArea struct {
	ID          uuid.UUID   `gorm:"type:varchar(36);primaryKey" json:"id"`
	FileID      uuid.UUID   `gorm:"type:varchar(36);not null;index" json:"file_id"`
	PageNumber  int         `gorm:"column:page_number;not null" json:"page_number"`
	AreaType    AreaType    `gorm:"column:area_type;type:varchar(16);not null;index" json:"area_type"`
	Coordinates Coordinates `gorm:"embedded;embeddedPrefix:coord_" json:"coordinates"`
	Content     string      `gorm:"column:content;type:text;not null;default:''" json:"content"`
	CreatedAt   time.Time   `gorm:"not null;index" json:"created_at"`
}

func (DocumentArea) TableName() string { return "document_areas" }

func (a *DocumentArea) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
