package learning

import "testing"

func TestLadder_LevelFor(t *testing.T) {
	l := DefaultLadder()
	cases := []struct {
		points int
		level  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{500, 4},
		{900, 5},
		{100000, 5},
	}
	for _, tc := range cases {
		if got := l.LevelFor(tc.points); got != tc.level {
			t.Fatalf("LevelFor(%d) = %d, want %d", tc.points, got, tc.level)
		}
	}
}

func TestLadder_Advance_UnlocksExactlyOnTransition(t *testing.T) {
	l := DefaultLadder()

	total, level, unlocked := l.Advance(90, 10, 1)
	if !unlocked || level != 2 || total != 100 {
		t.Fatalf("expected unlock at 100 points, got total=%d level=%d unlocked=%v", total, level, unlocked)
	}

	// A later call at the same level must not re-announce the unlock.
	total, level, unlocked = l.Advance(total, 10, level)
	if unlocked || level != 2 || total != 110 {
		t.Fatalf("expected no repeat unlock, got total=%d level=%d unlocked=%v", total, level, unlocked)
	}
}

func TestLadder_Advance_NeverDecreases(t *testing.T) {
	l := DefaultLadder()
	_, level, _ := l.Advance(0, 0, 3)
	if level != 3 {
		t.Fatalf("expected level to hold at 3, got %d", level)
	}
}

func TestLadder_PointsToNext(t *testing.T) {
	l := DefaultLadder()
	if got := l.PointsToNext(60, 1); got != 40 {
		t.Fatalf("expected 40 points to next level, got %d", got)
	}
	if got := l.PointsToNext(900, 5); got != 0 {
		t.Fatalf("expected 0 at the top level, got %d", got)
	}
}
