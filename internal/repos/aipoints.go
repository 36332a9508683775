package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/types"
)

type AiPointsRepo interface {
	// GetOrCreate returns the budget row for (user, period), seeding a fresh
	// row with defaultLimit when the period has just rolled over.
	GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, periodStart string, defaultLimit int) (*types.AiPointsBudget, error)
	// Charge adds cost to the used counter and returns the updated row.
	Charge(ctx context.Context, tx *gorm.DB, id uuid.UUID, cost int) (*types.AiPointsBudget, error)
}

type aiPointsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAiPointsRepo(db *gorm.DB, baseLog *logger.Logger) AiPointsRepo {
	return &aiPointsRepo{db: db, log: baseLog.With("repo", "AiPointsRepo")}
}

func (r *aiPointsRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, periodStart string, defaultLimit int) (*types.AiPointsBudget, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.AiPointsBudget{UserID: userID, PeriodStart: periodStart, Limit: defaultLimit}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND period_start = ?", userID, periodStart).
		FirstOrCreate(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *aiPointsRepo) Charge(ctx context.Context, tx *gorm.DB, id uuid.UUID, cost int) (*types.AiPointsBudget, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if cost <= 0 {
		cost = 0
	}
	if err := transaction.WithContext(ctx).
		Model(&types.AiPointsBudget{}).
		Where("id = ?", id).
		UpdateColumn("used", gorm.Expr("used + ?", cost)).Error; err != nil {
		return nil, err
	}
	var row types.AiPointsBudget
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
