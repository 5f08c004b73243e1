// Package xp implements the pure rules of the leveling system: the level
// curve, the accrual policy deciding how much XP an activity event earns,
// and the reward intents produced by level crossings. Nothing in this
// package performs I/O or mutates state.
package xp

import "math"

// LevelCost is the coefficient of the quadratic level curve: reaching
// level n requires LevelCost * n * n total XP.
const LevelCost = 75

// ThresholdFor returns the total XP required to reach the given level.
func ThresholdFor(level int64) int64 {
	return LevelCost * level * level
}

// LevelAt returns the level a member with the given total XP has reached.
// The curve is total over xp >= 0, monotonic, and unbounded. The closed
// form is a square root; the correction loops cover float rounding at
// threshold boundaries.
func LevelAt(xp int64) int64 {
	if xp < LevelCost {
		return 0
	}

	level := int64(math.Sqrt(float64(xp) / LevelCost))

	for ThresholdFor(level+1) <= xp {
		level++
	}

	for level > 0 && ThresholdFor(level) > xp {
		level--
	}

	return level
}

// Progress describes where a total XP amount sits on the level curve.
type Progress struct {
	Level       int64 // level reached
	IntoLevel   int64 // XP accumulated past the current level's threshold
	ForNext     int64 // XP between the current and next thresholds
	NextAtTotal int64 // total XP at which the next level is reached
}

// ProgressAt computes the level progress for a total XP amount.
func ProgressAt(xp int64) Progress {
	level := LevelAt(xp)
	current := ThresholdFor(level)
	next := ThresholdFor(level + 1)

	return Progress{
		Level:       level,
		IntoLevel:   xp - current,
		ForNext:     next - current,
		NextAtTotal: next,
	}
}
