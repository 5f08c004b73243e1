package types

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// GuildSetting holds the per-guild tunables for the leveling system.
// The maps are stored as JSONB; level keys are serialized as strings by
// the JSON encoder but remain int64 in memory.
type GuildSetting struct {
	bun.BaseModel `bun:"table:guild_settings"`

	GuildID               snowflake.ID             `bun:"guild_id,pk"                            json:"guildId"`
	XPPerMessage          int64                    `bun:"xp_per_message,notnull"                 json:"xpPerMessage"`
	XPPerVoiceMinute      int64                    `bun:"xp_per_voice_minute,notnull"            json:"xpPerVoiceMinute"`
	CooldownSeconds       int64                    `bun:"cooldown_seconds,notnull"               json:"cooldownSeconds"`
	AnnouncementChannelID snowflake.ID             `bun:"announcement_channel_id,nullzero"       json:"announcementChannelId"`
	RemovePreviousRewards bool                     `bun:"remove_previous_rewards,notnull"        json:"removePreviousRewards"`
	BlacklistedChannels   []snowflake.ID           `bun:"blacklisted_channels,type:bigint[]"     json:"blacklistedChannels"`
	ManagerRoles          []snowflake.ID           `bun:"manager_roles,type:bigint[]"            json:"managerRoles"`
	RoleMultipliers       map[snowflake.ID]float64 `bun:"role_multipliers,type:jsonb"            json:"roleMultipliers"`
	LevelRoleRewards      map[int64]snowflake.ID   `bun:"level_role_rewards,type:jsonb"          json:"levelRoleRewards"`
	LevelMessages         map[int64]string         `bun:"level_messages,type:jsonb"              json:"levelMessages"`
}

// IsBlacklisted reports whether the channel is excluded from XP accrual.
func (s *GuildSetting) IsBlacklisted(channelID snowflake.ID) bool {
	for _, id := range s.BlacklistedChannels {
		if id == channelID {
			return true
		}
	}

	return false
}

// Multiplier resolves the XP multiplier for a member holding the given
// roles. Multipliers are not cumulative; the highest configured value
// among the member's roles wins. Members with no configured role get 1.
func (s *GuildSetting) Multiplier(roleIDs []snowflake.ID) float64 {
	best := 1.0
	found := false

	for _, id := range roleIDs {
		m, ok := s.RoleMultipliers[id]
		if !ok {
			continue
		}

		if !found || m > best {
			best = m
			found = true
		}
	}

	return best
}

// IsManager reports whether any of the given roles is authorized for
// admin commands.
func (s *GuildSetting) IsManager(roleIDs []snowflake.ID) bool {
	for _, id := range roleIDs {
		for _, manager := range s.ManagerRoles {
			if id == manager {
				return true
			}
		}
	}

	return false
}

// RoleRewardFor returns the role configured as a reward for the given
// level, or zero if none is configured.
func (s *GuildSetting) RoleRewardFor(level int64) snowflake.ID {
	return s.LevelRoleRewards[level]
}

// MessageFor returns the announcement template configured for the given
// level, or an empty string if none is configured.
func (s *GuildSetting) MessageFor(level int64) string {
	return s.LevelMessages[level]
}
