package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/learning"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/repos"
)

// ProgressStatus is the per-user unlock ladder position plus what the next
// level costs.
type ProgressStatus struct {
	CurrentMaxDifficulty int   `json:"current_max_difficulty"`
	TotalPoints          int   `json:"total_points"`
	PointsNeeded         int   `json:"points_needed"`
	Thresholds           []int `json:"thresholds"`
}

type ProgressionService interface {
	Get(ctx context.Context, userID uuid.UUID) (*ProgressStatus, error)
	// RecordCorrectAnswer accumulates points and reports unlockedNewLevel
	// exactly on the call that crosses a threshold.
	RecordCorrectAnswer(ctx context.Context, userID uuid.UUID, pointsEarned int) (*ProgressStatus, bool, error)
}

type progressionService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.ProgressRepo
	ladder learning.Ladder
}

func NewProgressionService(db *gorm.DB, baseLog *logger.Logger, repo repos.ProgressRepo, ladder learning.Ladder) ProgressionService {
	return &progressionService{
		db:     db,
		log:    baseLog.With("service", "ProgressionService"),
		repo:   repo,
		ladder: ladder,
	}
}

func (s *progressionService) Get(ctx context.Context, userID uuid.UUID) (*ProgressStatus, error) {
	row, err := s.repo.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return &ProgressStatus{
		CurrentMaxDifficulty: row.CurrentMaxDifficulty,
		TotalPoints:          row.TotalPoints,
		PointsNeeded:         s.ladder.PointsToNext(row.TotalPoints, row.CurrentMaxDifficulty),
		Thresholds:           s.ladder.Thresholds,
	}, nil
}

func (s *progressionService) RecordCorrectAnswer(ctx context.Context, userID uuid.UUID, pointsEarned int) (*ProgressStatus, bool, error) {
	row, err := s.repo.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return nil, false, err
	}

	newTotal, newLevel, unlocked := s.ladder.Advance(row.TotalPoints, pointsEarned, row.CurrentMaxDifficulty)
	row.TotalPoints = newTotal
	row.CurrentMaxDifficulty = newLevel
	if err := s.repo.Save(ctx, nil, row); err != nil {
		return nil, false, err
	}

	if unlocked {
		s.log.Info("difficulty level unlocked", "user_id", userID, "level", newLevel)
	}
	return &ProgressStatus{
		CurrentMaxDifficulty: row.CurrentMaxDifficulty,
		TotalPoints:          row.TotalPoints,
		PointsNeeded:         s.ladder.PointsToNext(row.TotalPoints, row.CurrentMaxDifficulty),
		Thresholds:           s.ladder.Thresholds,
	}, unlocked, nil
}
