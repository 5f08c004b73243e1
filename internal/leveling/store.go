package leveling

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/types"
)

var (
	// ErrStorageUnavailable wraps persistence failures. Activity events
	// hitting it are dropped at the ingestion boundary; admin commands
	// surface it to the caller so they can retry.
	ErrStorageUnavailable = errors.New("member storage unavailable")

	// ErrInvalidAdjustment is returned for admin operations with
	// out-of-range amounts.
	ErrInvalidAdjustment = errors.New("invalid xp adjustment")

	// ErrNoChange aborts a store update without writing. Mutation
	// callbacks return it when the accrual policy denies the event.
	ErrNoChange = errors.New("no change to commit")
)

// Store is the member state store. Implementations must serialize
// mutations per (guild, member) key without blocking unrelated keys, and
// must enforce two invariants on every commit: TotalXP never goes
// negative (deltas clamp to zero) and Level always equals the level curve
// applied to TotalXP.
type Store interface {
	// Get returns the latest committed record, or a zero-value record if
	// the member has never earned XP. Unknown members are not an error.
	Get(ctx context.Context, guildID, memberID snowflake.ID) (*types.MemberXP, error)

	// Update applies fn to the member's record inside a per-key atomic
	// read-modify-write and returns the record before and after the
	// commit. A fn error aborts the write and is returned as-is; the
	// record is created lazily if absent.
	Update(
		ctx context.Context, guildID, memberID snowflake.ID, fn func(*types.MemberXP) error,
	) (before, after *types.MemberXP, err error)

	// TopMembers returns a leaderboard page ordered by descending
	// TotalXP with ascending MemberID as tiebreak. The read is snapshot
	// consistent; it does not block writers.
	TopMembers(ctx context.Context, guildID snowflake.ID, limit, offset int) ([]*types.MemberXP, error)

	// CountMembers returns the number of tracked members in the guild.
	CountMembers(ctx context.Context, guildID snowflake.ID) (int, error)
}

// SettingsProvider resolves the per-guild tunables. Implementations fall
// back to configured defaults when a guild has no stored settings, so
// activity tracking degrades gracefully instead of failing.
type SettingsProvider interface {
	Get(ctx context.Context, guildID snowflake.ID) (*types.GuildSetting, error)
}

// RoleSource exposes a member's current roles, consulted at voice flush
// time so multipliers reflect the roles held when the time is banked,
// not when the session started.
type RoleSource interface {
	MemberRoles(ctx context.Context, guildID, memberID snowflake.ID) ([]snowflake.ID, error)
}
