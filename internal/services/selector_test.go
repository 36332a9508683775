package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/maturio/maturio-backend/internal/platform/apierr"
	"github.com/maturio/maturio-backend/internal/types"
)

func newSelectorFixture(catalog *fakeCatalog) (SelectorService, *fakeQuota, *fakeProgression) {
	quota := newFakeQuota()
	progression := newFakeProgression()
	svc := NewSelectorService(nil, testLogger(), catalog, quota, progression)
	return svc, quota, progression
}

func selectorSession(t *testing.T, userID uuid.UUID, completed ...types.CompletedExercise) *types.Session {
	t.Helper()
	sess := &types.Session{ID: uuid.New(), UserID: userID, Status: types.SessionActive, Limit: 20}
	if err := sess.EncodeFilters(types.ExerciseFilters{}); err != nil {
		t.Fatalf("encode filters: %v", err)
	}
	if err := sess.SetCompletedList(completed); err != nil {
		t.Fatalf("set completed: %v", err)
	}
	return sess
}

func TestSelectorQuotaErrorBeatsEmptyPool(t *testing.T) {
	catalog := newFakeCatalog()
	svc, quota, _ := newSelectorFixture(catalog)
	quota.freeAllowed = false
	user := freeUser()

	_, err := svc.SelectNext(context.Background(), user, selectorSession(t, user.ID), uuid.Nil, false)
	if !apierr.HasCode(err, apierr.CodeFreeLimitExceeded) {
		t.Fatalf("want %s, got %v", apierr.CodeFreeLimitExceeded, err)
	}
	if catalog.findCalls != 0 {
		t.Fatalf("an exhausted account must not query the pool")
	}
}

func TestSelectorEmptyPool(t *testing.T) {
	svc, quota, _ := newSelectorFixture(newFakeCatalog())
	user := freeUser()

	_, err := svc.SelectNext(context.Background(), user, selectorSession(t, user.ID), uuid.Nil, false)
	if !apierr.HasCode(err, apierr.CodeNoExercises) {
		t.Fatalf("want %s, got %v", apierr.CodeNoExercises, err)
	}
	if quota.freeConsumed != 0 {
		t.Fatalf("nothing served, nothing consumed: consumed=%d", quota.freeConsumed)
	}
}

func TestSelectorExcludesCompletedAndSkipped(t *testing.T) {
	done := closedExercise(1)
	next := closedExercise(1)
	catalog := newFakeCatalog(done, next)
	svc, _, _ := newSelectorFixture(catalog)
	user := freeUser()
	sess := selectorSession(t, user.ID, types.CompletedExercise{ExerciseID: done.ID, Score: 1})

	skipped := uuid.New()
	got, err := svc.SelectNext(context.Background(), user, sess, skipped, false)
	if err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if got.ID != next.ID {
		t.Fatalf("a completed exercise must not repeat")
	}
	excluded := map[uuid.UUID]bool{}
	for _, id := range catalog.lastQuery.ExcludeIDs {
		excluded[id] = true
	}
	if !excluded[done.ID] || !excluded[skipped] {
		t.Fatalf("exclude list missing entries: %v", catalog.lastQuery.ExcludeIDs)
	}
}

func TestSelectorFreePlanGetsClosedTypesOnly(t *testing.T) {
	catalog := newFakeCatalog(closedExercise(1))
	svc, _, _ := newSelectorFixture(catalog)
	user := freeUser()

	if _, err := svc.SelectNext(context.Background(), user, selectorSession(t, user.ID), uuid.Nil, false); err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if len(catalog.lastQuery.AllowedTypes) != len(types.ClosedTypes()) {
		t.Fatalf("free plan allowed types: %v", catalog.lastQuery.AllowedTypes)
	}
}

func TestSelectorPremiumPlanUnrestricted(t *testing.T) {
	catalog := newFakeCatalog(essayExercise(3))
	svc, quota, _ := newSelectorFixture(catalog)
	user := premiumUser()

	got, err := svc.SelectNext(context.Background(), user, selectorSession(t, user.ID), uuid.Nil, false)
	if err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if got == nil || got.Type != types.ExerciseEssay {
		t.Fatalf("premium should be offered open types")
	}
	if len(catalog.lastQuery.AllowedTypes) != 0 {
		t.Fatalf("premium must not be type-restricted: %v", catalog.lastQuery.AllowedTypes)
	}
	if quota.freeConsumed != 0 {
		t.Fatalf("premium serving must not consume free quota")
	}
}

func TestSelectorConsumesFreeQuotaOnServe(t *testing.T) {
	svc, quota, _ := newSelectorFixture(newFakeCatalog(closedExercise(1)))
	user := freeUser()

	if _, err := svc.SelectNext(context.Background(), user, selectorSession(t, user.ID), uuid.Nil, false); err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if quota.freeConsumed != 1 {
		t.Fatalf("serving must consume quota: consumed=%d", quota.freeConsumed)
	}
}

func TestSelectorAppliesDifficultyCeiling(t *testing.T) {
	catalog := newFakeCatalog(closedExercise(1))
	svc, _, progression := newSelectorFixture(catalog)
	progression.level = 2
	user := freeUser()

	if _, err := svc.SelectNext(context.Background(), user, selectorSession(t, user.ID), uuid.Nil, false); err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if catalog.lastQuery.MaxDifficulty != 2 {
		t.Fatalf("max difficulty: want=2 got=%d", catalog.lastQuery.MaxDifficulty)
	}
}

func TestSelectorPassesSequentialFlag(t *testing.T) {
	catalog := newFakeCatalog(closedExercise(1))
	svc, _, _ := newSelectorFixture(catalog)
	user := freeUser()

	if _, err := svc.SelectNext(context.Background(), user, selectorSession(t, user.ID), uuid.Nil, true); err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if !catalog.lastQuery.Sequential {
		t.Fatalf("sequential flag was dropped")
	}
}
