package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestDailyUsageRepoIncrementCreatesThenCounts(t *testing.T) {
	tx := testTx(t, testDB(t))
	repo := NewDailyUsageRepo(db, nopLogger())
	ctx := context.Background()

	userID := uuid.New()
	day := "2026-09-01"

	row, err := repo.GetForDay(ctx, tx, userID, day)
	if err != nil {
		t.Fatalf("GetForDay: %v", err)
	}
	if row != nil {
		t.Fatalf("expected no row before the first serve, got %+v", row)
	}

	for want := 1; want <= 3; want++ {
		row, err = repo.Increment(ctx, tx, userID, day)
		if err != nil {
			t.Fatalf("Increment %d: %v", want, err)
		}
		if row.Used != want {
			t.Fatalf("used: want=%d got=%d", want, row.Used)
		}
	}

	// A different day starts its own counter.
	other, err := repo.Increment(ctx, tx, userID, "2026-09-02")
	if err != nil {
		t.Fatalf("Increment other day: %v", err)
	}
	if other.Used != 1 {
		t.Fatalf("new day counter: want=1 got=%d", other.Used)
	}
}

func TestAiPointsRepoGetOrCreateSeedsPerPeriod(t *testing.T) {
	tx := testTx(t, testDB(t))
	repo := NewAiPointsRepo(db, nopLogger())
	ctx := context.Background()

	userID := uuid.New()
	row, err := repo.GetOrCreate(ctx, tx, userID, "2026-09", 100)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if row.Limit != 100 || row.Used != 0 {
		t.Fatalf("fresh budget: limit=%d used=%d", row.Limit, row.Used)
	}

	again, err := repo.GetOrCreate(ctx, tx, userID, "2026-09", 100)
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if again.ID != row.ID {
		t.Fatalf("expected the same row within a period")
	}

	next, err := repo.GetOrCreate(ctx, tx, userID, "2026-10", 100)
	if err != nil {
		t.Fatalf("GetOrCreate next period: %v", err)
	}
	if next.ID == row.ID {
		t.Fatalf("a new period must get its own row")
	}
}

func TestAiPointsRepoCharge(t *testing.T) {
	tx := testTx(t, testDB(t))
	repo := NewAiPointsRepo(db, nopLogger())
	ctx := context.Background()

	row, err := repo.GetOrCreate(ctx, tx, uuid.New(), "2026-09", 10)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	charged, err := repo.Charge(ctx, tx, row.ID, 3)
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if charged.Used != 3 {
		t.Fatalf("used after charge: want=3 got=%d", charged.Used)
	}
	if charged.Remaining() != 7 {
		t.Fatalf("remaining: want=7 got=%d", charged.Remaining())
	}

	charged, err = repo.Charge(ctx, tx, row.ID, 3)
	if err != nil {
		t.Fatalf("second Charge: %v", err)
	}
	if charged.Used != 6 {
		t.Fatalf("used after second charge: want=6 got=%d", charged.Used)
	}
}

func TestProgressRepoGetOrCreateDefaultsToLevelOne(t *testing.T) {
	tx := testTx(t, testDB(t))
	repo := NewProgressRepo(db, nopLogger())
	ctx := context.Background()

	userID := uuid.New()
	row, err := repo.GetOrCreate(ctx, tx, userID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if row.CurrentMaxDifficulty != 1 || row.TotalPoints != 0 {
		t.Fatalf("fresh progress: %+v", row)
	}

	row.TotalPoints = 120
	row.CurrentMaxDifficulty = 2
	if err := repo.Save(ctx, tx, row); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := repo.GetOrCreate(ctx, tx, userID)
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if again.TotalPoints != 120 || again.CurrentMaxDifficulty != 2 {
		t.Fatalf("progress did not round-trip: %+v", again)
	}
}
