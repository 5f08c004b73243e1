package xp

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/types"
)

// MessageXP computes the XP a posted message earns under the guild's
// accrual policy. It returns the delta and whether the member's cooldown
// timestamp should advance.
//
// Blacklist and cooldown are independent gates; both must pass for XP to
// be awarded. A message in a blacklisted channel does not advance the
// cooldown timestamp, so posting there cannot delay XP for messages in
// eligible channels.
func MessageXP(
	settings *types.GuildSetting, channelID snowflake.ID,
	roleIDs []snowflake.ID, lastMessageAt, now time.Time,
) (delta int64, advanceCooldown bool) {
	if settings.IsBlacklisted(channelID) {
		return 0, false
	}

	if !cooldownSatisfied(settings, lastMessageAt, now) {
		return 0, false
	}

	delta = scale(settings.XPPerMessage, settings.Multiplier(roleIDs))

	return delta, true
}

// VoiceMinutesXP computes the XP earned by whole minutes of voice
// presence in a channel. Voice accrual has no cooldown; the multiplier is
// the member's at flush time, and a blacklisted channel yields zero.
func VoiceMinutesXP(
	settings *types.GuildSetting, channelID snowflake.ID,
	roleIDs []snowflake.ID, minutes int64,
) int64 {
	if minutes <= 0 || settings.IsBlacklisted(channelID) {
		return 0
	}

	return scale(minutes*settings.XPPerVoiceMinute, settings.Multiplier(roleIDs))
}

// ActivityXP returns the XP equivalent of an activity total, used by the
// admin command that rewrites a member's record from message and voice
// counts. Multipliers deliberately do not apply here.
func ActivityXP(settings *types.GuildSetting, messages, voiceMinutes int64) int64 {
	return messages*settings.XPPerMessage + voiceMinutes*settings.XPPerVoiceMinute
}

// cooldownSatisfied reports whether enough time has passed since the last
// XP-granting message. The cooldown is per member, not per channel.
func cooldownSatisfied(settings *types.GuildSetting, lastMessageAt, now time.Time) bool {
	if settings.CooldownSeconds <= 0 || lastMessageAt.IsZero() {
		return true
	}

	return now.Sub(lastMessageAt) >= time.Duration(settings.CooldownSeconds)*time.Second
}

// scale applies a role multiplier to a base amount, rounding down. The
// result is never negative.
func scale(base int64, multiplier float64) int64 {
	scaled := int64(float64(base) * multiplier)
	if scaled < 0 {
		return 0
	}

	return scaled
}
