package learning

// Ladder is the difficulty-unlock progression: Thresholds[i] is the
// cumulative point total required to hold level i+1. Thresholds[0] is always
// zero (level 1 is unlocked from the start) and entries are non-decreasing.
type Ladder struct {
	Thresholds []int
}

const MaxDifficulty = 5

// DefaultLadder mirrors the production unlock curve.
func DefaultLadder() Ladder {
	return Ladder{Thresholds: []int{0, 100, 250, 500, 900}}
}

// LevelFor returns the highest level unlocked by the given point total.
func (l Ladder) LevelFor(points int) int {
	level := 1
	for i, t := range l.Thresholds {
		if points >= t {
			level = i + 1
		}
	}
	if level > MaxDifficulty {
		level = MaxDifficulty
	}
	return level
}

// PointsToNext returns the points still needed for the next level, or zero
// when the top level is held.
func (l Ladder) PointsToNext(points, level int) int {
	if level >= len(l.Thresholds) || level >= MaxDifficulty {
		return 0
	}
	need := l.Thresholds[level] - points
	if need < 0 {
		return 0
	}
	return need
}

// Advance accumulates earned points onto total and reports the resulting
// level. Unlocked is true exactly when this call crosses a threshold; the
// level never drops below currentLevel.
func (l Ladder) Advance(total, earned, currentLevel int) (newTotal, newLevel int, unlocked bool) {
	newTotal = total + earned
	newLevel = l.LevelFor(newTotal)
	if newLevel < currentLevel {
		newLevel = currentLevel
	}
	unlocked = newLevel > currentLevel
	return newTotal, newLevel, unlocked
}
