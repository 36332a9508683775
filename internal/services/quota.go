package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/learning"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/platform/apierr"
	"github.com/maturio/maturio-backend/internal/repos"
	"github.com/maturio/maturio-backend/internal/types"
)

// FreeQuotaStatus answers the free-tier admission question.
type FreeQuotaStatus struct {
	Allowed      bool      `json:"allowed"`
	Used         int       `json:"used"`
	Limit        int       `json:"limit"`
	Remaining    int       `json:"remaining"`
	AllowedTypes []string  `json:"allowed_types"`
	ResetAt      time.Time `json:"reset_at"`
}

// AiBudgetStatus answers the paid-tier admission question for one type.
type AiBudgetStatus struct {
	Allowed   bool `json:"allowed"`
	Cost      int  `json:"cost"`
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}

// QuotaCache is the optional fast path for daily counters (redis-backed in
// production). The service works without one; the database is authoritative.
type QuotaCache interface {
	GetUsed(ctx context.Context, userID, day string) (int, bool, error)
	SetUsed(ctx context.Context, userID, day string, used int, expireAt time.Time) error
}

type QuotaService interface {
	CheckFreeQuota(ctx context.Context, user *types.User) (*FreeQuotaStatus, error)
	// ConsumeFreeQuota is called once per served exercise for free accounts.
	ConsumeFreeQuota(ctx context.Context, user *types.User) (*FreeQuotaStatus, error)
	CheckAiBudget(ctx context.Context, userID uuid.UUID, exerciseType string) (*AiBudgetStatus, error)
	// ConsumeAiBudget is called once per scored submission of a nonzero-cost type.
	ConsumeAiBudget(ctx context.Context, userID uuid.UUID, exerciseType string) (*AiBudgetStatus, error)
}

type quotaService struct {
	db    *gorm.DB
	log   *logger.Logger
	usage repos.DailyUsageRepo
	ai    repos.AiPointsRepo
	cache QuotaCache

	freeDailyLimit int
	aiDefaultLimit int
	costs          learning.CostTable
	now            func() time.Time
}

func NewQuotaService(db *gorm.DB, baseLog *logger.Logger, usage repos.DailyUsageRepo, ai repos.AiPointsRepo, cache QuotaCache, freeDailyLimit, aiDefaultLimit int, costs learning.CostTable) QuotaService {
	return &quotaService{
		db:             db,
		log:            baseLog.With("service", "QuotaService"),
		usage:          usage,
		ai:             ai,
		cache:          cache,
		freeDailyLimit: freeDailyLimit,
		aiDefaultLimit: aiDefaultLimit,
		costs:          costs,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func nextMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

func billingPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (s *quotaService) CheckFreeQuota(ctx context.Context, user *types.User) (*FreeQuotaStatus, error) {
	if user == nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
	}
	now := s.now()
	resetAt := nextMidnight(now)

	if user.IsPremium() {
		// Premium accounts are gated by AI points only.
		return &FreeQuotaStatus{
			Allowed:      true,
			Used:         0,
			Limit:        s.freeDailyLimit,
			Remaining:    s.freeDailyLimit,
			AllowedTypes: allExerciseTypes(),
			ResetAt:      resetAt,
		}, nil
	}

	used, err := s.usedToday(ctx, user.ID, utcDay(now), resetAt)
	if err != nil {
		return nil, err
	}
	remaining := s.freeDailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return &FreeQuotaStatus{
		Allowed:      remaining > 0,
		Used:         used,
		Limit:        s.freeDailyLimit,
		Remaining:    remaining,
		AllowedTypes: types.ClosedTypes(),
		ResetAt:      resetAt,
	}, nil
}

func (s *quotaService) ConsumeFreeQuota(ctx context.Context, user *types.User) (*FreeQuotaStatus, error) {
	if user == nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
	}
	if user.IsPremium() {
		return s.CheckFreeQuota(ctx, user)
	}
	now := s.now()
	day := utcDay(now)
	resetAt := nextMidnight(now)

	row, err := s.usage.Increment(ctx, nil, user.ID, day)
	if err != nil {
		return nil, err
	}
	s.cacheUsed(ctx, user.ID, day, row.Used, resetAt)

	remaining := s.freeDailyLimit - row.Used
	if remaining < 0 {
		remaining = 0
	}
	return &FreeQuotaStatus{
		Allowed:      remaining > 0,
		Used:         row.Used,
		Limit:        s.freeDailyLimit,
		Remaining:    remaining,
		AllowedTypes: types.ClosedTypes(),
		ResetAt:      resetAt,
	}, nil
}

func (s *quotaService) CheckAiBudget(ctx context.Context, userID uuid.UUID, exerciseType string) (*AiBudgetStatus, error) {
	cost := s.costs.CostFor(exerciseType)
	row, err := s.ai.GetOrCreate(ctx, nil, userID, billingPeriod(s.now()), s.aiDefaultLimit)
	if err != nil {
		return nil, err
	}
	remaining := row.Remaining()
	return &AiBudgetStatus{
		Allowed:   cost <= remaining,
		Cost:      cost,
		Used:      row.Used,
		Limit:     row.Limit,
		Remaining: remaining,
	}, nil
}

func (s *quotaService) ConsumeAiBudget(ctx context.Context, userID uuid.UUID, exerciseType string) (*AiBudgetStatus, error) {
	cost := s.costs.CostFor(exerciseType)
	row, err := s.ai.GetOrCreate(ctx, nil, userID, billingPeriod(s.now()), s.aiDefaultLimit)
	if err != nil {
		return nil, err
	}
	if cost > 0 {
		row, err = s.ai.Charge(ctx, nil, row.ID, cost)
		if err != nil {
			return nil, err
		}
	}
	return &AiBudgetStatus{
		Allowed:   row.Remaining() > 0,
		Cost:      cost,
		Used:      row.Used,
		Limit:     row.Limit,
		Remaining: row.Remaining(),
	}, nil
}

// usedToday prefers the cache and falls back to the database, warming the
// cache on a miss. Cache failures are logged and ignored.
func (s *quotaService) usedToday(ctx context.Context, userID uuid.UUID, day string, resetAt time.Time) (int, error) {
	if s.cache != nil {
		used, ok, err := s.cache.GetUsed(ctx, userID.String(), day)
		if err != nil {
			s.log.Warn("quota cache read failed", "error", err)
		} else if ok {
			return used, nil
		}
	}
	row, err := s.usage.GetForDay(ctx, nil, userID, day)
	if err != nil {
		return 0, fmt.Errorf("read daily usage: %w", err)
	}
	used := 0
	if row != nil {
		used = row.Used
	}
	s.cacheUsed(ctx, userID, day, used, resetAt)
	return used, nil
}

func (s *quotaService) cacheUsed(ctx context.Context, userID uuid.UUID, day string, used int, resetAt time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetUsed(ctx, userID.String(), day, used, resetAt); err != nil {
		s.log.Warn("quota cache write failed", "error", err)
	}
}

func allExerciseTypes() []string {
	return []string{
		types.ExerciseClosedSingle,
		types.ExerciseClosedMultiple,
		types.ExerciseShortAnswer,
		types.ExerciseSynthesisNote,
		types.ExerciseEssay,
	}
}
