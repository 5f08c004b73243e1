package xp

import (
	"sort"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/types"
)

// Intent is a reward side effect requested by a level crossing. The
// engine only emits intents; granting roles and sending announcements is
// the bot layer's job, and a failed delivery never rolls back the XP
// mutation that produced the intent.
type Intent struct {
	GuildID  snowflake.ID
	MemberID snowflake.ID
	Level    int64        // the level that was reached
	RoleID   snowflake.ID // role reward for this level, zero if none
	Template string       // announcement template, empty if none configured
}

// Crossings returns every level in (oldLevel, newLevel] in ascending
// order, or nil when no level was gained. Each crossed level gets its own
// entry so per-level rewards are not skipped when a single XP grant jumps
// several levels at once.
func Crossings(oldLevel, newLevel int64) []int64 {
	if newLevel <= oldLevel {
		return nil
	}

	levels := make([]int64, 0, newLevel-oldLevel)
	for l := oldLevel + 1; l <= newLevel; l++ {
		levels = append(levels, l)
	}

	return levels
}

// BuildIntents derives the reward intents for an XP transition. Lowering
// XP produces no intents; revocation on downgrade is left to admin
// tooling.
func BuildIntents(
	guildID, memberID snowflake.ID, oldXP, newXP int64, settings *types.GuildSetting,
) []Intent {
	crossed := Crossings(LevelAt(oldXP), LevelAt(newXP))
	if len(crossed) == 0 {
		return nil
	}

	intents := make([]Intent, 0, len(crossed))
	for _, level := range crossed {
		intents = append(intents, Intent{
			GuildID:  guildID,
			MemberID: memberID,
			Level:    level,
			RoleID:   settings.RoleRewardFor(level),
			Template: settings.MessageFor(level),
		})
	}

	return intents
}

// RoleChange pairs a reward role with the level it rewards.
type RoleChange struct {
	Level  int64
	RoleID snowflake.ID
}

// RolePlan computes which reward roles a member at the given level should
// gain and lose, given the roles they currently hold. With the
// remove-previous toggle enabled only the highest applicable reward role
// is kept; otherwise reward roles accumulate. Roles rewarding levels
// above the member's are always removed, which lets admin downgrades be
// reconciled with the same plan.
func RolePlan(
	level int64, currentRoles []snowflake.ID, settings *types.GuildSetting,
) (add, remove []RoleChange) {
	held := make(map[snowflake.ID]struct{}, len(currentRoles))
	for _, id := range currentRoles {
		held[id] = struct{}{}
	}

	// Highest applicable reward level, used by the remove-previous toggle.
	var topLevel int64 = -1

	for rewardLevel := range settings.LevelRoleRewards {
		if rewardLevel <= level && rewardLevel > topLevel {
			topLevel = rewardLevel
		}
	}

	for rewardLevel, roleID := range settings.LevelRoleRewards {
		_, has := held[roleID]

		switch {
		case rewardLevel > level:
			if has {
				remove = append(remove, RoleChange{Level: rewardLevel, RoleID: roleID})
			}
		case settings.RemovePreviousRewards && rewardLevel != topLevel:
			if has {
				remove = append(remove, RoleChange{Level: rewardLevel, RoleID: roleID})
			}
		default:
			if !has {
				add = append(add, RoleChange{Level: rewardLevel, RoleID: roleID})
			}
		}
	}

	sortChanges(add)
	sortChanges(remove)

	return add, remove
}

func sortChanges(changes []RoleChange) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Level != changes[j].Level {
			return changes[i].Level < changes[j].Level
		}

		return changes[i].RoleID < changes[j].RoleID
	})
}
