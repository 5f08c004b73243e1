package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/dbretry"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/robalyx/guildxp/internal/xp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// MemberModel handles database operations for member XP records. It is
// the durable implementation of the leveling store: mutations run inside
// a row-locked transaction so concurrent events for the same member
// serialize, while different members proceed in parallel.
type MemberModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMember creates a MemberModel with database access.
func NewMember(db *bun.DB, logger *zap.Logger) *MemberModel {
	return &MemberModel{
		db:     db,
		logger: logger.Named("db_member"),
	}
}

// Get retrieves a member's XP record. Members without a row read as a
// zero-value record rather than an error.
func (r *MemberModel) Get(ctx context.Context, guildID, memberID snowflake.ID) (*types.MemberXP, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.MemberXP, error) {
		record := &types.MemberXP{GuildID: guildID, MemberID: memberID}

		err := r.db.NewSelect().Model(record).
			WherePK().
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &types.MemberXP{GuildID: guildID, MemberID: memberID}, nil
			}

			return nil, fmt.Errorf("failed to get member xp: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
		}

		return record, nil
	})
}

// Update applies fn to the member's record inside a transaction holding
// the row lock, so the read, the mutation, and the write commit as one
// unit. The row is created lazily; TotalXP clamps at zero and the cached
// level is re-derived before the commit. A fn error rolls the
// transaction back and is returned unchanged.
func (r *MemberModel) Update(
	ctx context.Context, guildID, memberID snowflake.ID, fn func(*types.MemberXP) error,
) (*types.MemberXP, *types.MemberXP, error) {
	var before, after *types.MemberXP

	err := dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		record := &types.MemberXP{GuildID: guildID, MemberID: memberID}

		err := tx.NewSelect().Model(record).
			WherePK().
			For("UPDATE").
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to lock member xp: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
		}

		before = record.Clone()

		next := record.Clone()
		if err := fn(next); err != nil {
			return err
		}

		if next.TotalXP < 0 {
			next.TotalXP = 0
		}

		next.Level = xp.LevelAt(next.TotalXP)

		_, err = tx.NewInsert().Model(next).
			On("CONFLICT (guild_id, member_id) DO UPDATE").
			Set("total_xp = EXCLUDED.total_xp").
			Set("level = EXCLUDED.level").
			Set("message_count = EXCLUDED.message_count").
			Set("voice_minutes = EXCLUDED.voice_minutes").
			Set("last_message_at = EXCLUDED.last_message_at").
			Set("updated_at = now()").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save member xp: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
		}

		after = next

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return before, after, nil
}

// TopMembers retrieves one leaderboard page ordered by descending XP
// with ascending member ID as tiebreak, matching the index.
func (r *MemberModel) TopMembers(
	ctx context.Context, guildID snowflake.ID, limit, offset int,
) ([]*types.MemberXP, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.MemberXP, error) {
		var records []*types.MemberXP

		err := r.db.NewSelect().Model(&records).
			Where("guild_id = ?", guildID).
			OrderExpr("total_xp DESC, member_id ASC").
			Limit(limit).
			Offset(offset).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get leaderboard page: %w (guildID=%d)", err, guildID)
		}

		return records, nil
	})
}

// CountMembers returns the number of tracked members in the guild.
func (r *MemberModel) CountMembers(ctx context.Context, guildID snowflake.ID) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		count, err := r.db.NewSelect().Model((*types.MemberXP)(nil)).
			Where("guild_id = ?", guildID).
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count members: %w (guildID=%d)", err, guildID)
		}

		return count, nil
	})
}
