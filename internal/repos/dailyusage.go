package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/types"
)

type DailyUsageRepo interface {
	// GetForDay returns the row for (user, day) or nil when nothing has been
	// served that day yet.
	GetForDay(ctx context.Context, tx *gorm.DB, userID uuid.UUID, day string) (*types.DailyUsage, error)
	// Increment bumps the served counter for (user, day), creating the row on
	// first use, and returns the updated row.
	Increment(ctx context.Context, tx *gorm.DB, userID uuid.UUID, day string) (*types.DailyUsage, error)
}

type dailyUsageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDailyUsageRepo(db *gorm.DB, baseLog *logger.Logger) DailyUsageRepo {
	return &dailyUsageRepo{db: db, log: baseLog.With("repo", "DailyUsageRepo")}
}

func (r *dailyUsageRepo) GetForDay(ctx context.Context, tx *gorm.DB, userID uuid.UUID, day string) (*types.DailyUsage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.DailyUsage
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *dailyUsageRepo) Increment(ctx context.Context, tx *gorm.DB, userID uuid.UUID, day string) (*types.DailyUsage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	row := &types.DailyUsage{UserID: userID, Day: day}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		FirstOrCreate(row).Error; err != nil {
		return nil, err
	}
	if err := transaction.WithContext(ctx).
		Model(&types.DailyUsage{}).
		Where("id = ?", row.ID).
		UpdateColumn("used", gorm.Expr("used + 1")).Error; err != nil {
		return nil, err
	}
	row.Used++
	return row, nil
}
