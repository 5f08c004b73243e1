package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/dbretry"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// SettingModel handles database operations for guild settings.
type SettingModel struct {
	db       *bun.DB
	logger   *zap.Logger
	defaults types.GuildSetting
}

// NewSetting creates a SettingModel with database access. The defaults
// seed the row created for guilds that have never been configured.
func NewSetting(db *bun.DB, defaults types.GuildSetting, logger *zap.Logger) *SettingModel {
	return &SettingModel{
		db:       db,
		logger:   logger.Named("db_setting"),
		defaults: defaults,
	}
}

// GetGuildSettings retrieves settings for a specific guild, creating a
// default row if none exist yet.
func (r *SettingModel) GetGuildSettings(ctx context.Context, guildID snowflake.ID) (*types.GuildSetting, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.GuildSetting, error) {
		settings := r.defaults
		settings.GuildID = guildID

		err := r.db.NewSelect().Model(&settings).
			WherePK().
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Create default settings if none exist
				_, err = r.db.NewInsert().Model(&settings).
					On("CONFLICT (guild_id) DO NOTHING").
					Exec(ctx)
				if err != nil {
					return nil, fmt.Errorf("failed to create guild settings: %w (guildID=%d)", err, guildID)
				}
			} else {
				return nil, fmt.Errorf("failed to get guild settings: %w (guildID=%d)", err, guildID)
			}
		}

		return &settings, nil
	})
}

// SaveGuildSettings updates or creates guild settings.
func (r *SettingModel) SaveGuildSettings(ctx context.Context, settings *types.GuildSetting) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(settings).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("xp_per_message = EXCLUDED.xp_per_message").
			Set("xp_per_voice_minute = EXCLUDED.xp_per_voice_minute").
			Set("cooldown_seconds = EXCLUDED.cooldown_seconds").
			Set("announcement_channel_id = EXCLUDED.announcement_channel_id").
			Set("remove_previous_rewards = EXCLUDED.remove_previous_rewards").
			Set("blacklisted_channels = EXCLUDED.blacklisted_channels").
			Set("manager_roles = EXCLUDED.manager_roles").
			Set("role_multipliers = EXCLUDED.role_multipliers").
			Set("level_role_rewards = EXCLUDED.level_role_rewards").
			Set("level_messages = EXCLUDED.level_messages").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save guild settings: %w (guildID=%d)", err, settings.GuildID)
		}

		return nil
	})
}
