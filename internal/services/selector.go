package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/observability"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/platform/apierr"
	"github.com/maturio/maturio-backend/internal/repos"
	"github.com/maturio/maturio-backend/internal/types"
)

// SelectorService chooses the next exercise for a session. Skip and advance
// share this one entry point: a skip passes the just-seen id as excludeID.
type SelectorService interface {
	SelectNext(ctx context.Context, user *types.User, session *types.Session, excludeID uuid.UUID, sequential bool) (*types.Exercise, error)
}

type selectorService struct {
	db          *gorm.DB
	log         *logger.Logger
	catalog     CatalogService
	quota       QuotaService
	progression ProgressionService
}

func NewSelectorService(db *gorm.DB, baseLog *logger.Logger, catalog CatalogService, quota QuotaService, progression ProgressionService) SelectorService {
	return &selectorService{
		db:          db,
		log:         baseLog.With("service", "SelectorService"),
		catalog:     catalog,
		quota:       quota,
		progression: progression,
	}
}

func (s *selectorService) SelectNext(ctx context.Context, user *types.User, session *types.Session, excludeID uuid.UUID, sequential bool) (*types.Exercise, error) {
	if user == nil || session == nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
	}

	// Quota first, so an exhausted free account sees the quota error rather
	// than a misleading empty-pool one.
	var allowedTypes []string
	if !user.IsPremium() {
		status, err := s.quota.CheckFreeQuota(ctx, user)
		if err != nil {
			return nil, err
		}
		if !status.Allowed {
			observability.Current().IncQuotaRejection(apierr.CodeFreeLimitExceeded)
			return nil, apierr.WithMeta(http.StatusForbidden, apierr.CodeFreeLimitExceeded,
				fmt.Errorf("daily free limit of %d exercises reached", status.Limit),
				map[string]any{
					"remaining": status.Remaining,
					"limit":     status.Limit,
					"reset_at":  status.ResetAt,
				})
		}
		allowedTypes = status.AllowedTypes
	}

	progress, err := s.progression.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	filters, err := session.DecodeFilters()
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, apierr.CodeInvalidInput, err)
	}

	completed, err := session.CompletedList()
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, apierr.CodeInvalidInput, err)
	}
	exclude := make([]uuid.UUID, 0, len(completed)+1)
	for _, c := range completed {
		exclude = append(exclude, c.ExerciseID)
	}
	if excludeID != uuid.Nil {
		exclude = append(exclude, excludeID)
	}

	exercise, err := s.catalog.Find(ctx, repos.ExerciseQuery{
		Filters:       filters,
		MaxDifficulty: progress.CurrentMaxDifficulty,
		AllowedTypes:  allowedTypes,
		ExcludeIDs:    exclude,
		Sequential:    sequential,
	})
	if err != nil {
		return nil, err
	}
	if exercise == nil {
		return nil, apierr.New(http.StatusNotFound, apierr.CodeNoExercises,
			fmt.Errorf("no exercises match the current filters and unlocked difficulty; widen or clear the filters"))
	}

	// Serving consumes free quota, whether or not the learner ever submits.
	if !user.IsPremium() {
		if _, err := s.quota.ConsumeFreeQuota(ctx, user); err != nil {
			return nil, err
		}
	}
	return exercise, nil
}
