package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// MemberXP is the durable per-guild, per-member experience record.
// TotalXP only decreases through explicit admin operations; Level is the
// cached result of the level curve and is re-derived on every committed
// mutation so the two never drift apart.
type MemberXP struct {
	bun.BaseModel `bun:"table:member_xp"`

	GuildID       snowflake.ID `bun:"guild_id,pk"`
	MemberID      snowflake.ID `bun:"member_id,pk"`
	TotalXP       int64        `bun:"total_xp,notnull,default:0"`
	Level         int64        `bun:"level,notnull,default:0"`
	MessageCount  int64        `bun:"message_count,notnull,default:0"`
	VoiceMinutes  int64        `bun:"voice_minutes,notnull,default:0"`
	LastMessageAt time.Time    `bun:"last_message_at,nullzero"`
	UpdatedAt     time.Time    `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Clone returns a copy of the record so callers can compare the state
// before and after a mutation.
func (m *MemberXP) Clone() *MemberXP {
	c := *m
	return &c
}
