package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/repos"
	"github.com/maturio/maturio-backend/internal/types"
)

// CatalogService is read-only access to the exercise pool. It never mutates
// anything; admission control and progression live elsewhere.
type CatalogService interface {
	Get(ctx context.Context, id uuid.UUID) (*types.Exercise, error)
	Find(ctx context.Context, q repos.ExerciseQuery) (*types.Exercise, error)
	Count(ctx context.Context, q repos.ExerciseQuery) (int64, error)
}

type catalogService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.ExerciseRepo
}

func NewCatalogService(db *gorm.DB, baseLog *logger.Logger, repo repos.ExerciseRepo) CatalogService {
	return &catalogService{
		db:   db,
		log:  baseLog.With("service", "CatalogService"),
		repo: repo,
	}
}

func (s *catalogService) Get(ctx context.Context, id uuid.UUID) (*types.Exercise, error) {
	return s.repo.GetByID(ctx, nil, id)
}

func (s *catalogService) Find(ctx context.Context, q repos.ExerciseQuery) (*types.Exercise, error) {
	return s.repo.FindOne(ctx, nil, q)
}

func (s *catalogService) Count(ctx context.Context, q repos.ExerciseQuery) (int64, error) {
	return s.repo.Count(ctx, nil, q)
}
