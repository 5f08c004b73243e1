package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	disgobot "github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/models"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/robalyx/guildxp/internal/settings"
	"github.com/robalyx/guildxp/internal/xp"
	"go.uber.org/zap"
)

// DefaultLevelTemplate announces level-ups for levels without a
// configured message.
const DefaultLevelTemplate = "Congratulations {user}, you reached level {level}!"

// restRoleSource resolves member roles from the gateway cache, falling
// back to the REST API on a miss.
type restRoleSource struct {
	client disgobot.Client
}

func (r *restRoleSource) MemberRoles(_ context.Context, guildID, memberID snowflake.ID) ([]snowflake.ID, error) {
	if member, ok := r.client.Caches().Member(guildID, memberID); ok {
		return member.RoleIDs, nil
	}

	member, err := r.client.Rest().GetMember(guildID, memberID)
	if err != nil {
		return nil, err
	}

	return member.RoleIDs, nil
}

// RewardExecutor turns reward intents into Discord side effects: role
// grants and removals, grant bookkeeping, and level-up announcements.
// Execution failures are logged and never fed back into XP state.
type RewardExecutor struct {
	client   disgobot.Client
	settings *settings.Provider
	rewards  *models.RewardModel
	logger   *zap.Logger
}

// NewRewardExecutor creates the executor. The Discord client is
// attached after the bot is constructed.
func NewRewardExecutor(provider *settings.Provider, rewards *models.RewardModel, logger *zap.Logger) *RewardExecutor {
	return &RewardExecutor{
		settings: provider,
		rewards:  rewards,
		logger:   logger.Named("rewards"),
	}
}

// Execute handles a batch of intents for one member. Role changes are
// reconciled once against the highest crossed level; announcements go
// out per level so a multi-level jump reads naturally in the channel.
func (e *RewardExecutor) Execute(ctx context.Context, intents []xp.Intent) {
	if len(intents) == 0 {
		return
	}

	// Intents in one batch share the guild and member, ascending by level.
	last := intents[len(intents)-1]

	guildSettings, err := e.settings.Get(ctx, last.GuildID)
	if err != nil {
		e.logger.Error("Skipping reward execution, settings unavailable",
			zap.Uint64("guildID", uint64(last.GuildID)),
			zap.Error(err))

		return
	}

	e.reconcileRoles(ctx, last.GuildID, last.MemberID, last.Level, guildSettings)

	for _, intent := range intents {
		e.announce(intent, guildSettings)
	}
}

// reconcileRoles applies the role plan for the member's level: grants
// the configured rewards up to it and removes the ones above it, plus
// lower ones when the guild keeps only the topmost reward.
func (e *RewardExecutor) reconcileRoles(
	ctx context.Context, guildID, memberID snowflake.ID, level int64, guildSettings *types.GuildSetting,
) {
	if len(guildSettings.LevelRoleRewards) == 0 {
		return
	}

	currentRoles, err := (&restRoleSource{client: e.client}).MemberRoles(ctx, guildID, memberID)
	if err != nil {
		e.logger.Error("Skipping role rewards, member roles unavailable",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("memberID", uint64(memberID)),
			zap.Error(err))

		return
	}

	add, remove := xp.RolePlan(level, currentRoles, guildSettings)

	for _, change := range add {
		if err := e.client.Rest().AddMemberRole(guildID, memberID, change.RoleID); err != nil {
			e.logger.Error("Failed to grant reward role",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("memberID", uint64(memberID)),
				zap.Uint64("roleID", uint64(change.RoleID)),
				zap.Error(err))

			continue
		}

		err := e.rewards.RecordGrant(ctx, &types.MemberReward{
			GuildID:   guildID,
			MemberID:  memberID,
			Level:     change.Level,
			RoleID:    change.RoleID,
			GrantedAt: time.Now(),
		})
		if err != nil {
			e.logger.Error("Failed to record reward grant", zap.Error(err))
		}
	}

	for _, change := range remove {
		if err := e.client.Rest().RemoveMemberRole(guildID, memberID, change.RoleID); err != nil {
			e.logger.Error("Failed to remove reward role",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("memberID", uint64(memberID)),
				zap.Uint64("roleID", uint64(change.RoleID)),
				zap.Error(err))

			continue
		}

		if err := e.rewards.DeleteGrant(ctx, guildID, memberID, change.Level); err != nil {
			e.logger.Error("Failed to delete reward grant record", zap.Error(err))
		}
	}
}

// announce posts the level-up message to the configured channel. Guilds
// without an announcement channel stay silent.
func (e *RewardExecutor) announce(intent xp.Intent, guildSettings *types.GuildSetting) {
	if guildSettings.AnnouncementChannelID == 0 {
		return
	}

	template := intent.Template
	if template == "" {
		template = DefaultLevelTemplate
	}

	content := RenderTemplate(template, intent.MemberID, intent.Level)

	_, err := e.client.Rest().CreateMessage(guildSettings.AnnouncementChannelID,
		discord.NewMessageCreateBuilder().SetContent(content).Build())
	if err != nil {
		e.logger.Error("Failed to post level announcement",
			zap.Uint64("guildID", uint64(intent.GuildID)),
			zap.Uint64("channelID", uint64(guildSettings.AnnouncementChannelID)),
			zap.Error(err))
	}
}

// RenderTemplate substitutes the {user} and {level} placeholders in an
// announcement template.
func RenderTemplate(template string, memberID snowflake.ID, level int64) string {
	content := strings.ReplaceAll(template, "{user}", "<@"+memberID.String()+">")

	return strings.ReplaceAll(content, "{level}", strconv.FormatInt(level, 10))
}
