package xp_test

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/robalyx/guildxp/internal/xp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rewardSettings(removePrevious bool) *types.GuildSetting {
	return &types.GuildSetting{
		GuildID:               snowflake.ID(1),
		RemovePreviousRewards: removePrevious,
		LevelRoleRewards: map[int64]snowflake.ID{
			5:  snowflake.ID(500),
			7:  snowflake.ID(700),
			10: snowflake.ID(1000),
		},
		LevelMessages: map[int64]string{
			5: "{user} made it to level 5!",
		},
	}
}

func TestCrossings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int64{5, 6, 7}, xp.Crossings(4, 7))
	assert.Equal(t, []int64{1}, xp.Crossings(0, 1))
	assert.Nil(t, xp.Crossings(3, 3))
	assert.Nil(t, xp.Crossings(7, 4))
}

func TestBuildIntents_MultiLevelCrossing(t *testing.T) {
	t.Parallel()

	settings := rewardSettings(true)
	guildID := snowflake.ID(1)
	memberID := snowflake.ID(42)

	// Level 4 to level 7 must emit one intent per crossed level, ascending.
	oldXP := xp.ThresholdFor(4)
	newXP := xp.ThresholdFor(7)

	intents := xp.BuildIntents(guildID, memberID, oldXP, newXP, settings)
	require.Len(t, intents, 3)

	assert.Equal(t, int64(5), intents[0].Level)
	assert.Equal(t, snowflake.ID(500), intents[0].RoleID)
	assert.Equal(t, "{user} made it to level 5!", intents[0].Template)

	assert.Equal(t, int64(6), intents[1].Level)
	assert.Zero(t, intents[1].RoleID)

	assert.Equal(t, int64(7), intents[2].Level)
	assert.Equal(t, snowflake.ID(700), intents[2].RoleID)

	for _, intent := range intents {
		assert.Equal(t, guildID, intent.GuildID)
		assert.Equal(t, memberID, intent.MemberID)
	}
}

func TestBuildIntents_NoIntentsOnDecrease(t *testing.T) {
	t.Parallel()

	settings := rewardSettings(true)
	intents := xp.BuildIntents(snowflake.ID(1), snowflake.ID(42), xp.ThresholdFor(7), xp.ThresholdFor(4), settings)
	assert.Empty(t, intents)
}

func TestRolePlan_RemovePrevious(t *testing.T) {
	t.Parallel()

	settings := rewardSettings(true)

	// Member at level 8 holding the level 5 role: gains the level 7 role,
	// loses the level 5 role, never touches the level 10 role.
	add, remove := xp.RolePlan(8, []snowflake.ID{snowflake.ID(500)}, settings)

	require.Len(t, add, 1)
	assert.Equal(t, snowflake.ID(700), add[0].RoleID)

	require.Len(t, remove, 1)
	assert.Equal(t, snowflake.ID(500), remove[0].RoleID)
}

func TestRolePlan_Accumulate(t *testing.T) {
	t.Parallel()

	settings := rewardSettings(false)

	add, remove := xp.RolePlan(8, []snowflake.ID{snowflake.ID(500)}, settings)

	require.Len(t, add, 1)
	assert.Equal(t, snowflake.ID(700), add[0].RoleID)
	assert.Empty(t, remove)
}

func TestRolePlan_DowngradeRemovesAboveLevel(t *testing.T) {
	t.Parallel()

	settings := rewardSettings(false)

	// Member lowered to level 6 still holding the level 7 and 10 roles.
	held := []snowflake.ID{snowflake.ID(500), snowflake.ID(700), snowflake.ID(1000)}
	add, remove := xp.RolePlan(6, held, settings)

	assert.Empty(t, add)
	require.Len(t, remove, 2)
	assert.Equal(t, snowflake.ID(700), remove[0].RoleID)
	assert.Equal(t, snowflake.ID(1000), remove[1].RoleID)
}

func TestRolePlan_NoRewardsConfigured(t *testing.T) {
	t.Parallel()

	settings := &types.GuildSetting{GuildID: snowflake.ID(1)}
	add, remove := xp.RolePlan(10, nil, settings)
	assert.Empty(t, add)
	assert.Empty(t, remove)
}
