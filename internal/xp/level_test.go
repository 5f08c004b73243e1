package xp_test

import (
	"testing"

	"github.com/robalyx/guildxp/internal/xp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		xp    int64
		level int64
	}{
		{name: "zero xp", xp: 0, level: 0},
		{name: "below first threshold", xp: 74, level: 0},
		{name: "exactly level one", xp: 75, level: 1},
		{name: "just under level two", xp: 299, level: 1},
		{name: "exactly level two", xp: 300, level: 2},
		{name: "level ten", xp: 7500, level: 10},
		{name: "just under level ten", xp: 7499, level: 9},
		{name: "high level", xp: 75 * 1000 * 1000, level: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.level, xp.LevelAt(tt.xp))
		})
	}
}

func TestLevelAt_Monotonic(t *testing.T) {
	t.Parallel()

	// Levels must never decrease as XP grows, including across every
	// threshold boundary.
	prev := int64(0)
	for total := int64(0); total <= xp.ThresholdFor(50); total += 7 {
		level := xp.LevelAt(total)
		require.GreaterOrEqual(t, level, prev, "level decreased at xp=%d", total)
		prev = level
	}
}

func TestLevelAt_ThresholdBoundaries(t *testing.T) {
	t.Parallel()

	for level := int64(1); level <= 200; level++ {
		threshold := xp.ThresholdFor(level)
		assert.Equal(t, level, xp.LevelAt(threshold))
		assert.Equal(t, level-1, xp.LevelAt(threshold-1))
	}
}

func TestProgressAt(t *testing.T) {
	t.Parallel()

	p := xp.ProgressAt(100)
	assert.Equal(t, int64(1), p.Level)
	assert.Equal(t, int64(25), p.IntoLevel)
	assert.Equal(t, int64(300-75), p.ForNext)
	assert.Equal(t, int64(300), p.NextAtTotal)

	p = xp.ProgressAt(0)
	assert.Equal(t, int64(0), p.Level)
	assert.Equal(t, int64(0), p.IntoLevel)
	assert.Equal(t, int64(75), p.ForNext)
}
