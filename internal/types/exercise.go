package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Exercise answer shapes. The content payload under each type is described in
// internal/learning (tagged per-type variants).
const (
	ExerciseClosedSingle   = "CLOSED_SINGLE"
	ExerciseClosedMultiple = "CLOSED_MULTIPLE"
	ExerciseShortAnswer    = "SHORT_ANSWER"
	ExerciseSynthesisNote  = "SYNTHESIS_NOTE"
	ExerciseEssay          = "ESSAY"
)

// Exercise is a catalog entity. Content authors own it; the engine reads it.
type Exercise struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Type         string         `gorm:"column:type;not null;index" json:"type"`
	Category     string         `gorm:"column:category;not null;index" json:"category"`
	Epoch        *string        `gorm:"column:epoch;index" json:"epoch,omitempty"`
	LiteraryWork *string        `gorm:"column:literary_work;index" json:"literary_work,omitempty"`
	Difficulty   int            `gorm:"column:difficulty;not null;index" json:"difficulty"`
	Points       int            `gorm:"column:points;not null" json:"points"`
	Content      datatypes.JSON `gorm:"column:content;type:jsonb;not null" json:"content"`
	// SearchText is denormalized prompt/option text maintained by the
	// authoring pipeline; the catalog's search filter matches against it.
	SearchText string    `gorm:"column:search_text" json:"-"`
	CreatedAt  time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Exercise) TableName() string {
	return "exercise"
}

// ClosedTypes are the only shapes the free tier may be served; they are also
// the shapes graded without the AI grader.
func ClosedTypes() []string {
	return []string{ExerciseClosedSingle, ExerciseClosedMultiple}
}

func IsClosedType(t string) bool {
	return t == ExerciseClosedSingle || t == ExerciseClosedMultiple
}
