package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Submission is one scored answer to one exercise within one session.
// Immutable once scored; a retry for the same exercise within a session
// overwrites the row instead of inserting a second one.
type Submission struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID  uuid.UUID `gorm:"type:uuid;not null;index:idx_submission_session_exercise,unique" json:"session_id"`
	Session    *Session  `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	ExerciseID uuid.UUID `gorm:"type:uuid;not null;index:idx_submission_session_exercise,unique" json:"exercise_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	UserAnswer datatypes.JSON `gorm:"column:user_answer;type:jsonb;not null" json:"user_answer"`
	Score      int            `gorm:"column:score;not null" json:"score"`
	Feedback   datatypes.JSON `gorm:"column:feedback;type:jsonb" json:"feedback"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Submission) TableName() string {
	return "submission"
}
