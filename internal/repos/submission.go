package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/types"
)

type SubmissionRepo interface {
	// Upsert by unique (session_id, exercise_id): a retry for the same
	// exercise overwrites the stored answer/score instead of duplicating.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.Submission) error
	GetBySessionAndExercise(ctx context.Context, tx *gorm.DB, sessionID, exerciseID uuid.UUID) (*types.Submission, error)
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Submission, error)
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{db: db, log: baseLog.With("repo", "SubmissionRepo")}
}

func (r *submissionRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.Submission) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	if err := transaction.WithContext(ctx).
		Where("session_id = ? AND exercise_id = ?", row.SessionID, row.ExerciseID).
		Assign(map[string]any{
			"user_answer": row.UserAnswer,
			"score":       row.Score,
			"feedback":    row.Feedback,
		}).
		FirstOrCreate(row).Error; err != nil {
		return err
	}
	return nil
}

func (r *submissionRepo) GetBySessionAndExercise(ctx context.Context, tx *gorm.DB, sessionID, exerciseID uuid.UUID) (*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Submission
	err := transaction.WithContext(ctx).
		Where("session_id = ? AND exercise_id = ?", sessionID, exerciseID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *submissionRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Submission, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Submission
	if sessionID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
