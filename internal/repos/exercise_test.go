package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/maturio/maturio-backend/internal/types"
)

func TestExerciseRepoFindOneRespectsExcludeIDs(t *testing.T) {
	tx := testTx(t, testDB(t))
	repo := NewExerciseRepo(db, nopLogger())
	ctx := context.Background()

	a := seedExercise(t, tx, repo, types.ExerciseClosedSingle, "grammar", 1, "alpha")
	b := seedExercise(t, tx, repo, types.ExerciseClosedSingle, "grammar", 1, "beta")

	got, err := repo.FindOne(ctx, tx, ExerciseQuery{
		MaxDifficulty: 5,
		Filters:       types.ExerciseFilters{Category: ptrString("grammar")},
		ExcludeIDs:    []uuid.UUID{a.ID},
	})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got == nil || got.ID != b.ID {
		t.Fatalf("expected the non-excluded exercise, got %+v", got)
	}

	got, err = repo.FindOne(ctx, tx, ExerciseQuery{
		MaxDifficulty: 5,
		Filters:       types.ExerciseFilters{Category: ptrString("grammar")},
		ExcludeIDs:    []uuid.UUID{a.ID, b.ID},
	})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no match when everything is excluded, got %v", got.ID)
	}
}

func TestExerciseRepoFindOneDifficultyCeiling(t *testing.T) {
	tx := testTx(t, testDB(t))
	repo := NewExerciseRepo(db, nopLogger())
	ctx := context.Background()

	seedExercise(t, tx, repo, types.ExerciseClosedSingle, "poetry", 4, "hard one")
	easy := seedExercise(t, tx, repo, types.ExerciseClosedSingle, "poetry", 2, "easy one")

	got, err := repo.FindOne(ctx, tx, ExerciseQuery{
		MaxDifficulty: 2,
		Filters:       types.ExerciseFilters{Category: ptrString("poetry")},
	})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got == nil || got.ID != easy.ID {
		t.Fatalf("expected only the exercise under the ceiling, got %+v", got)
	}
}

func TestExerciseRepoAllowedTypesIntersectsLearnerChoice(t *testing.T) {
	tx := testTx(t, testDB(t))
	repo := NewExerciseRepo(db, nopLogger())
	ctx := context.Background()

	seedExercise(t, tx, repo, types.ExerciseEssay, "essay", 1, "essay prompt")
	closed := seedExercise(t, tx, repo, types.ExerciseClosedSingle, "essay", 1, "closed prompt")

	// Free plan: only closed types allowed even with no learner type filter.
	got, err := repo.FindOne(ctx, tx, ExerciseQuery{
		MaxDifficulty: 5,
		AllowedTypes:  types.ClosedTypes(),
		Filters:       types.ExerciseFilters{Category: ptrString("essay")},
	})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got == nil || got.ID != closed.ID {
		t.Fatalf("expected the closed-type exercise, got %+v", got)
	}

	// Learner asks only for a forbidden type: nothing matches.
	got, err = repo.FindOne(ctx, tx, ExerciseQuery{
		MaxDifficulty: 5,
		AllowedTypes:  types.ClosedTypes(),
		Filters: types.ExerciseFilters{
			Category: ptrString("essay"),
			Types:    []string{types.ExerciseEssay},
		},
	})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no match for a forbidden type, got %v", got.ID)
	}
}

func TestExerciseRepoCountWithSearchFilter(t *testing.T) {
	tx := testTx(t, testDB(t))
	repo := NewExerciseRepo(db, nopLogger())
	ctx := context.Background()

	seedExercise(t, tx, repo, types.ExerciseClosedSingle, "novel", 1, "Pan Tadeusz opening lines")
	seedExercise(t, tx, repo, types.ExerciseClosedSingle, "novel", 1, "a different prompt")

	search := "tadeusz"
	n, err := repo.Count(ctx, tx, ExerciseQuery{
		MaxDifficulty: 5,
		Filters: types.ExerciseFilters{
			Category: ptrString("novel"),
			Search:   &search,
		},
	})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 match for the search filter, got %d", n)
	}
}

func TestExerciseRepoSequentialOrdersByCreation(t *testing.T) {
	tx := testTx(t, testDB(t))
	repo := NewExerciseRepo(db, nopLogger())
	ctx := context.Background()

	now := time.Now().UTC()
	first := &types.Exercise{
		ID:         uuid.New(),
		Type:       types.ExerciseClosedSingle,
		Category:   "sequence",
		Difficulty: 1,
		Points:     2,
		Content:    datatypes.JSON(`{"prompt":"first"}`),
		SearchText: "first",
		CreatedAt:  now.Add(-2 * time.Hour),
	}
	second := &types.Exercise{
		ID:         uuid.New(),
		Type:       types.ExerciseClosedSingle,
		Category:   "sequence",
		Difficulty: 1,
		Points:     2,
		Content:    datatypes.JSON(`{"prompt":"second"}`),
		SearchText: "second",
		CreatedAt:  now.Add(-1 * time.Hour),
	}
	if _, err := repo.Create(ctx, tx, []*types.Exercise{second, first}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := repo.FindOne(ctx, tx, ExerciseQuery{
		MaxDifficulty: 5,
		Filters:       types.ExerciseFilters{Category: ptrString("sequence")},
		Sequential:    true,
	})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("sequential mode should serve the oldest exercise, got %+v", got)
	}
}

func ptrString(s string) *string { return &s }
