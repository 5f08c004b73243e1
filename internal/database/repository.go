package database

import (
	"github.com/robalyx/guildxp/internal/database/models"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	member  *models.MemberModel
	setting *models.SettingModel
	reward  *models.RewardModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, settingDefaults types.GuildSetting, logger *zap.Logger) *Repository {
	return &Repository{
		member:  models.NewMember(db, logger),
		setting: models.NewSetting(db, settingDefaults, logger),
		reward:  models.NewReward(db, logger),
	}
}

// Member returns the member XP model repository.
func (r *Repository) Member() *models.MemberModel {
	return r.member
}

// Setting returns the guild settings model repository.
func (r *Repository) Setting() *models.SettingModel {
	return r.setting
}

// Reward returns the reward grant model repository.
func (r *Repository) Reward() *models.RewardModel {
	return r.reward
}
