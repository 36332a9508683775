package types

import (
	"time"

	"github.com/google/uuid"
)

// DifficultyProgress is the per-user unlock ladder position.
// CurrentMaxDifficulty never decreases.
type DifficultyProgress struct {
	ID                   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID               uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	CurrentMaxDifficulty int       `gorm:"column:current_max_difficulty;not null;default:1" json:"current_max_difficulty"`
	TotalPoints          int       `gorm:"column:total_points;not null;default:0" json:"total_points"`
	CreatedAt            time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DifficultyProgress) TableName() string {
	return "difficulty_progress"
}
