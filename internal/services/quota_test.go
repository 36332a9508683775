package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maturio/maturio-backend/internal/learning"
	"github.com/maturio/maturio-backend/internal/types"
)

func newQuotaFixture(cache QuotaCache, freeLimit, aiLimit int) (*quotaService, *fakeUsageRepo, *fakeAiRepo) {
	usage := newFakeUsageRepo()
	ai := newFakeAiRepo()
	svc := NewQuotaService(nil, testLogger(), usage, ai, cache, freeLimit, aiLimit, learning.DefaultCostTable()).(*quotaService)
	return svc, usage, ai
}

func TestFreeQuotaCountsDown(t *testing.T) {
	svc, _, _ := newQuotaFixture(nil, 3, 100)
	user := freeUser()
	ctx := context.Background()

	status, err := svc.CheckFreeQuota(ctx, user)
	if err != nil {
		t.Fatalf("CheckFreeQuota: %v", err)
	}
	if !status.Allowed || status.Remaining != 3 {
		t.Fatalf("fresh day: allowed=%v remaining=%d", status.Allowed, status.Remaining)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.ConsumeFreeQuota(ctx, user); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}

	status, err = svc.CheckFreeQuota(ctx, user)
	if err != nil {
		t.Fatalf("CheckFreeQuota after exhaustion: %v", err)
	}
	if status.Allowed || status.Remaining != 0 || status.Used != 3 {
		t.Fatalf("exhausted: allowed=%v remaining=%d used=%d", status.Allowed, status.Remaining, status.Used)
	}
}

func TestFreeQuotaLastSlotStillAllowed(t *testing.T) {
	svc, _, _ := newQuotaFixture(nil, 2, 100)
	user := freeUser()
	ctx := context.Background()

	if _, err := svc.ConsumeFreeQuota(ctx, user); err != nil {
		t.Fatalf("consume: %v", err)
	}
	status, err := svc.CheckFreeQuota(ctx, user)
	if err != nil {
		t.Fatalf("CheckFreeQuota: %v", err)
	}
	if !status.Allowed || status.Remaining != 1 {
		t.Fatalf("one slot left must be allowed: allowed=%v remaining=%d", status.Allowed, status.Remaining)
	}
}

func TestFreeQuotaRestrictsFreePlanToClosedTypes(t *testing.T) {
	svc, _, _ := newQuotaFixture(nil, 10, 100)
	ctx := context.Background()

	status, err := svc.CheckFreeQuota(ctx, freeUser())
	if err != nil {
		t.Fatalf("CheckFreeQuota: %v", err)
	}
	if len(status.AllowedTypes) != len(types.ClosedTypes()) {
		t.Fatalf("free plan types: want closed only, got %v", status.AllowedTypes)
	}
	for _, typ := range status.AllowedTypes {
		if !types.IsClosedType(typ) {
			t.Fatalf("free plan must not be offered %s", typ)
		}
	}
}

func TestFreeQuotaPremiumBypass(t *testing.T) {
	svc, usage, _ := newQuotaFixture(nil, 1, 100)
	user := premiumUser()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		status, err := svc.ConsumeFreeQuota(ctx, user)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !status.Allowed {
			t.Fatalf("premium must never be limited")
		}
	}
	if len(usage.rows) != 0 {
		t.Fatalf("premium serving must not touch daily counters")
	}

	status, err := svc.CheckFreeQuota(ctx, user)
	if err != nil {
		t.Fatalf("CheckFreeQuota: %v", err)
	}
	if len(status.AllowedTypes) != 5 {
		t.Fatalf("premium gets every type, got %v", status.AllowedTypes)
	}
}

func TestFreeQuotaResetsAtUTCMidnight(t *testing.T) {
	svc, _, _ := newQuotaFixture(nil, 2, 100)
	user := freeUser()
	ctx := context.Background()

	day1 := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	svc.now = func() time.Time { return day1 }
	for i := 0; i < 2; i++ {
		if _, err := svc.ConsumeFreeQuota(ctx, user); err != nil {
			t.Fatalf("consume: %v", err)
		}
	}
	status, _ := svc.CheckFreeQuota(ctx, user)
	if status.Allowed {
		t.Fatalf("expected exhaustion before midnight")
	}
	wantReset := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !status.ResetAt.Equal(wantReset) {
		t.Fatalf("reset at: want=%s got=%s", wantReset, status.ResetAt)
	}

	svc.now = func() time.Time { return day1.Add(15 * time.Minute) }
	status, err := svc.CheckFreeQuota(ctx, user)
	if err != nil {
		t.Fatalf("CheckFreeQuota after midnight: %v", err)
	}
	if !status.Allowed || status.Used != 0 {
		t.Fatalf("new day must start fresh: allowed=%v used=%d", status.Allowed, status.Used)
	}
}

func TestFreeQuotaPrefersCache(t *testing.T) {
	cache := newFakeQuotaCache()
	svc, usage, _ := newQuotaFixture(cache, 10, 100)
	user := freeUser()
	ctx := context.Background()

	cache.values[user.ID.String()+":"+utcDay(svc.now())] = 7
	status, err := svc.CheckFreeQuota(ctx, user)
	if err != nil {
		t.Fatalf("CheckFreeQuota: %v", err)
	}
	if status.Used != 7 {
		t.Fatalf("cached value ignored: used=%d", status.Used)
	}
	if len(usage.rows) != 0 {
		t.Fatalf("a cache hit must not reach the database")
	}
}

func TestFreeQuotaSurvivesCacheFailure(t *testing.T) {
	cache := newFakeQuotaCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	svc, _, _ := newQuotaFixture(cache, 10, 100)
	user := freeUser()
	ctx := context.Background()

	if _, err := svc.ConsumeFreeQuota(ctx, user); err != nil {
		t.Fatalf("consume with dead cache: %v", err)
	}
	status, err := svc.CheckFreeQuota(ctx, user)
	if err != nil {
		t.Fatalf("check with dead cache: %v", err)
	}
	if status.Used != 1 {
		t.Fatalf("database must stay authoritative: used=%d", status.Used)
	}
}

func TestFreeQuotaWarmsCacheOnMiss(t *testing.T) {
	cache := newFakeQuotaCache()
	svc, _, _ := newQuotaFixture(cache, 10, 100)
	user := freeUser()
	ctx := context.Background()

	if _, err := svc.CheckFreeQuota(ctx, user); err != nil {
		t.Fatalf("CheckFreeQuota: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache should be warmed on a miss: sets=%d", cache.sets)
	}
}

func TestAiBudgetAffordability(t *testing.T) {
	svc, _, ai := newQuotaFixture(nil, 10, 4)
	user := premiumUser()
	ctx := context.Background()

	status, err := svc.CheckAiBudget(ctx, user.ID, types.ExerciseEssay)
	if err != nil {
		t.Fatalf("CheckAiBudget: %v", err)
	}
	if !status.Allowed || status.Cost != 3 || status.Remaining != 4 {
		t.Fatalf("fresh budget: %+v", status)
	}

	if _, err := svc.ConsumeAiBudget(ctx, user.ID, types.ExerciseEssay); err != nil {
		t.Fatalf("ConsumeAiBudget: %v", err)
	}

	// 1 point left: a short answer still fits, an essay does not.
	status, _ = svc.CheckAiBudget(ctx, user.ID, types.ExerciseShortAnswer)
	if !status.Allowed || status.Remaining != 1 {
		t.Fatalf("short answer with 1 point: %+v", status)
	}
	status, _ = svc.CheckAiBudget(ctx, user.ID, types.ExerciseEssay)
	if status.Allowed {
		t.Fatalf("an essay must not fit into 1 point: %+v", status)
	}

	if len(ai.rows) != 1 {
		t.Fatalf("one budget row per period: got %d", len(ai.rows))
	}
}

func TestAiBudgetClosedTypesAreFree(t *testing.T) {
	svc, _, ai := newQuotaFixture(nil, 10, 0)
	user := premiumUser()
	ctx := context.Background()

	status, err := svc.CheckAiBudget(ctx, user.ID, types.ExerciseClosedSingle)
	if err != nil {
		t.Fatalf("CheckAiBudget: %v", err)
	}
	if !status.Allowed || status.Cost != 0 {
		t.Fatalf("closed types cost nothing: %+v", status)
	}
	if _, err := svc.ConsumeAiBudget(ctx, user.ID, types.ExerciseClosedSingle); err != nil {
		t.Fatalf("ConsumeAiBudget: %v", err)
	}
	for _, row := range ai.rows {
		if row.Used != 0 {
			t.Fatalf("a zero-cost consume must not charge: used=%d", row.Used)
		}
	}
}

func TestAiBudgetRollsOverByBillingPeriod(t *testing.T) {
	svc, _, ai := newQuotaFixture(nil, 10, 5)
	user := premiumUser()
	ctx := context.Background()

	svc.now = func() time.Time { return time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC) }
	if _, err := svc.ConsumeAiBudget(ctx, user.ID, types.ExerciseEssay); err != nil {
		t.Fatalf("consume in january: %v", err)
	}

	svc.now = func() time.Time { return time.Date(2026, 2, 1, 0, 5, 0, 0, time.UTC) }
	status, err := svc.CheckAiBudget(ctx, user.ID, types.ExerciseEssay)
	if err != nil {
		t.Fatalf("check in february: %v", err)
	}
	if status.Used != 0 || status.Remaining != 5 {
		t.Fatalf("new period must start fresh: %+v", status)
	}
	if len(ai.rows) != 2 {
		t.Fatalf("expected one row per period, got %d", len(ai.rows))
	}
}
