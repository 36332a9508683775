package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SessionActive    = "ACTIVE"
	SessionCompleted = "COMPLETED"
	SessionAbandoned = "ABANDONED"
)

const DefaultSessionLimit = 20

// ExerciseFilters is the learner-chosen scope of a session. All fields are
// optional; empty means "everything I have unlocked".
type ExerciseFilters struct {
	Category     *string  `json:"category,omitempty"`
	Epochs       []string `json:"epochs,omitempty"`
	Types        []string `json:"types,omitempty"`
	Difficulties []int    `json:"difficulties,omitempty"`
	LiteraryWork *string  `json:"literary_work,omitempty"`
	Search       *string  `json:"search,omitempty"`
}

// CompletedExercise is one entry of a session's ordered completion list.
type CompletedExercise struct {
	ExerciseID uuid.UUID `json:"exercise_id"`
	Score      int       `json:"score"`
}

// Session is a bounded run of exercises. At most one per user is ACTIVE.
type Session struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Status string    `gorm:"column:status;not null;index" json:"status"`

	Filters            datatypes.JSON `gorm:"column:filters;type:jsonb" json:"filters"`
	CompletedExercises datatypes.JSON `gorm:"column:completed_exercises;type:jsonb" json:"completed_exercises"`

	Completed      int `gorm:"column:completed;not null;default:0" json:"completed"`
	Correct        int `gorm:"column:correct;not null;default:0" json:"correct"`
	Streak         int `gorm:"column:streak;not null;default:0" json:"streak"`
	MaxStreak      int `gorm:"column:max_streak;not null;default:0" json:"max_streak"`
	Points         int `gorm:"column:points;not null;default:0" json:"points"`
	ElapsedSeconds int `gorm:"column:elapsed_seconds;not null;default:0" json:"elapsed_seconds"`
	Limit          int `gorm:"column:exercise_limit;not null" json:"limit"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Session) TableName() string {
	return "session"
}

func (s *Session) DecodeFilters() (ExerciseFilters, error) {
	var f ExerciseFilters
	if len(s.Filters) == 0 || string(s.Filters) == "null" {
		return f, nil
	}
	err := json.Unmarshal(s.Filters, &f)
	return f, err
}

func (s *Session) EncodeFilters(f ExerciseFilters) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	s.Filters = datatypes.JSON(raw)
	return nil
}

func (s *Session) CompletedList() ([]CompletedExercise, error) {
	if len(s.CompletedExercises) == 0 || string(s.CompletedExercises) == "null" {
		return nil, nil
	}
	var list []CompletedExercise
	if err := json.Unmarshal(s.CompletedExercises, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Session) SetCompletedList(list []CompletedExercise) error {
	if list == nil {
		list = []CompletedExercise{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	s.CompletedExercises = datatypes.JSON(raw)
	return nil
}
