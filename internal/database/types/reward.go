package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// MemberReward records a level role that was actually granted to a
// member, so role removals on reward changes can be reconciled later.
type MemberReward struct {
	bun.BaseModel `bun:"table:member_rewards"`

	GuildID   snowflake.ID `bun:"guild_id,pk"`
	MemberID  snowflake.ID `bun:"member_id,pk"`
	Level     int64        `bun:"level,pk"`
	RoleID    snowflake.ID `bun:"role_id,notnull"`
	GrantedAt time.Time    `bun:"granted_at,nullzero,notnull,default:current_timestamp"`
}
