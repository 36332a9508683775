package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/types"
)

type ProgressRepo interface {
	GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.DifficultyProgress, error)
	Save(ctx context.Context, tx *gorm.DB, row *types.DifficultyProgress) error
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: baseLog.With("repo", "ProgressRepo")}
}

func (r *progressRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.DifficultyProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.DifficultyProgress{UserID: userID, CurrentMaxDifficulty: 1}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		FirstOrCreate(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *progressRepo) Save(ctx context.Context, tx *gorm.DB, row *types.DifficultyProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil || row.ID == uuid.Nil {
		return gorm.ErrRecordNotFound
	}
	return transaction.WithContext(ctx).Save(row).Error
}
