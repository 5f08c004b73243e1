package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.MemberXP)(nil),
			(*types.GuildSetting)(nil),
			(*types.MemberReward)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}

		_, err := db.NewRaw(`
			-- Leaderboard pages read in this exact order
			CREATE INDEX IF NOT EXISTS idx_member_xp_leaderboard
			ON member_xp (guild_id, total_xp DESC, member_id ASC);

			-- Reward reconciliation reads all grants for one member
			CREATE INDEX IF NOT EXISTS idx_member_rewards_member
			ON member_rewards (guild_id, member_id);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP TABLE IF EXISTS member_rewards;
			DROP TABLE IF EXISTS guild_settings;
			DROP TABLE IF EXISTS member_xp;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}

		return nil
	})
}
