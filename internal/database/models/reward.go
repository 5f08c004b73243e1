package models

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/dbretry"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// RewardModel handles database operations for granted level rewards.
type RewardModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewReward creates a RewardModel with database access.
func NewReward(db *bun.DB, logger *zap.Logger) *RewardModel {
	return &RewardModel{
		db:     db,
		logger: logger.Named("db_reward"),
	}
}

// RecordGrant logs a role grant for a member at a level. Replayed grants
// are ignored so the executor can retry without duplicating rows.
func (r *RewardModel) RecordGrant(ctx context.Context, grant *types.MemberReward) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(grant).
			On("CONFLICT (guild_id, member_id, level) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record reward grant: %w (guildID=%d, memberID=%d, level=%d)",
				err, grant.GuildID, grant.MemberID, grant.Level)
		}

		return nil
	})
}

// DeleteGrant removes the grant record for a member at a level, usually
// after the role itself was taken away.
func (r *RewardModel) DeleteGrant(ctx context.Context, guildID, memberID snowflake.ID, level int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewDelete().Model((*types.MemberReward)(nil)).
			Where("guild_id = ?", guildID).
			Where("member_id = ?", memberID).
			Where("level = ?", level).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete reward grant: %w (guildID=%d, memberID=%d, level=%d)",
				err, guildID, memberID, level)
		}

		return nil
	})
}

// ListForMember retrieves all recorded grants for a member ordered by
// ascending level.
func (r *RewardModel) ListForMember(
	ctx context.Context, guildID, memberID snowflake.ID,
) ([]*types.MemberReward, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.MemberReward, error) {
		var grants []*types.MemberReward

		err := r.db.NewSelect().Model(&grants).
			Where("guild_id = ?", guildID).
			Where("member_id = ?", memberID).
			OrderExpr("level ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list reward grants: %w (guildID=%d, memberID=%d)",
				err, guildID, memberID)
		}

		return grants, nil
	})
}
