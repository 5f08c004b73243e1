package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/robalyx/guildxp/internal/leveling"
	"go.uber.org/zap"
)

const embedColor = 0x5865F2

// handleApplicationCommandInteraction processes slash commands by first
// deferring the response, then handling the command in a goroutine so
// slow database reads never block the gateway.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		data := event.SlashCommandInteractionData()

		// Admin commands respond privately; lookups post in channel.
		ephemeral := data.CommandName() == XPCommandName || data.CommandName() == SettingsCommandName

		// Defer response to prevent Discord timeout while processing
		if err := event.DeferCreateMessage(ephemeral); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler", zap.Any("panic", r))
				b.respondText(event, "Internal error. Please report this to an administrator.")
			}

			b.logger.Debug("Application command interaction handled",
				zap.String("command", data.CommandName()),
				zap.Duration("duration", time.Since(start)))
		}()

		if event.GuildID() == nil {
			b.respondText(event, "This command only works in a server.")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		switch data.CommandName() {
		case LevelCommandName:
			b.handleLevel(ctx, event, data)
		case LeaderboardCommandName:
			b.handleLeaderboard(ctx, event, data)
		case XPCommandName:
			b.handleXP(ctx, event, data)
		case SettingsCommandName:
			b.handleSettings(ctx, event, data)
		default:
			b.respondText(event, "This command is not available.")
		}
	}()
}

func (b *Bot) respondText(event *events.ApplicationCommandInteractionCreate, content string) {
	b.respond(event, discord.NewMessageUpdateBuilder().SetContent(content).Build())
}

func (b *Bot) respondEmbed(event *events.ApplicationCommandInteractionCreate, embed discord.Embed) {
	b.respond(event, discord.NewMessageUpdateBuilder().SetEmbeds(embed).Build())
}

func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, update discord.MessageUpdate) {
	_, err := event.Client().Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

// handleLevel shows a member's progress toward the next level.
func (b *Bot) handleLevel(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	target := event.User().ID
	if memberID, ok := data.OptSnowflake("member"); ok {
		target = memberID
	}

	status, err := b.engine.MemberStatus(ctx, *event.GuildID(), target)
	if err != nil {
		b.respondText(event, "Could not load member progress right now. Please try again later.")
		return
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Level Progress").
		SetDescription(fmt.Sprintf("<@%d> is level **%d**", target, status.Level)).
		AddField("Total XP", fmt.Sprintf("%d", status.TotalXP), true).
		AddField("Next Level", fmt.Sprintf("%d / %d XP", status.XPIntoLevel, status.XPForNext), true).
		AddField("Activity", fmt.Sprintf("%d messages, %d voice minutes", status.MessageCount, status.VoiceMinutes), false).
		SetColor(embedColor).
		Build()

	b.respondEmbed(event, embed)
}

// handleLeaderboard shows one page of the guild ranking.
func (b *Bot) handleLeaderboard(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	page := 1
	if p, ok := data.OptInt("page"); ok {
		page = p
	}

	board, err := b.engine.Leaderboard(ctx, *event.GuildID(), page, 10)
	if err != nil {
		b.respondText(event, "Could not load the leaderboard right now. Please try again later.")
		return
	}

	if len(board.Entries) == 0 {
		b.respondText(event, "Nobody has earned XP on this page yet.")
		return
	}

	var sb strings.Builder
	for _, entry := range board.Entries {
		fmt.Fprintf(&sb, "`#%d` <@%d> — Level %d (%d XP)\n", entry.Rank, entry.MemberID, entry.Level, entry.TotalXP)
	}

	totalPages := (board.TotalMembers + board.PageSize - 1) / board.PageSize

	embed := discord.NewEmbedBuilder().
		SetTitle("XP Leaderboard").
		SetDescription(sb.String()).
		SetFooterText(fmt.Sprintf("Page %d of %d • %d members", board.Page, totalPages, board.TotalMembers)).
		SetColor(embedColor).
		Build()

	b.respondEmbed(event, embed)
}

// handleXP processes the admin XP subcommands. Access requires the
// Administrator permission or one of the configured manager roles.
func (b *Bot) handleXP(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	guildID := *event.GuildID()

	guildSettings, err := b.app.Settings.Get(ctx, guildID)
	if err != nil {
		b.respondText(event, "Could not load server settings right now. Please try again later.")
		return
	}

	if !b.isManager(event, guildSettings) {
		b.respondText(event, "You are not allowed to manage XP on this server.")
		return
	}

	sub := ""
	if data.SubCommandName != nil {
		sub = *data.SubCommandName
	}

	target := data.Snowflake("member")

	if sub == "activity" {
		b.handleXPActivity(ctx, event, data, guildID, target)
		return
	}

	var mode leveling.AdjustMode

	switch sub {
	case "add":
		mode = leveling.AdjustAdd
	case "remove":
		mode = leveling.AdjustRemove
	case "set":
		mode = leveling.AdjustSet
	default:
		b.respondText(event, "This command is not available.")
		return
	}

	adj, err := b.engine.AdjustXP(ctx, guildID, target, mode, int64(data.Int("amount")))
	if err != nil {
		b.respondText(event, "The XP adjustment failed. Please try again later.")
		return
	}

	// Level-ups from admin adjustments still hand out rewards.
	b.rewards.Execute(ctx, adj.Intents)

	b.respondText(event, fmt.Sprintf("<@%d> now has %d XP (level %d → %d).",
		target, adj.NewXP, adj.OldLevel, adj.NewLevel))
}

func (b *Bot) handleXPActivity(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate,
	data discord.SlashCommandInteractionData, guildID, target snowflake.ID,
) {
	var messages, voiceMinutes *int64

	if v, ok := data.OptInt("messages"); ok {
		n := int64(v)
		messages = &n
	}

	if v, ok := data.OptInt("voice_minutes"); ok {
		n := int64(v)
		voiceMinutes = &n
	}

	adj, err := b.engine.RecomputeFromActivity(ctx, guildID, target, messages, voiceMinutes)
	if err != nil {
		b.respondText(event, "Provide at least one activity count to rebuild from.")
		return
	}

	b.rewards.Execute(ctx, adj.Intents)

	b.respondText(event, fmt.Sprintf("Rebuilt <@%d>'s XP from activity: %d XP (level %d → %d).",
		target, adj.NewXP, adj.OldLevel, adj.NewLevel))
}

// handleSettings processes the configuration subcommands. Access
// requires the Manage Server permission.
func (b *Bot) handleSettings(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	member := event.Member()
	if member == nil || !member.Permissions.Has(discord.PermissionManageGuild) {
		b.respondText(event, "You need the Manage Server permission to change leveling settings.")
		return
	}

	guildID := *event.GuildID()

	guildSettings, err := b.app.Settings.Get(ctx, guildID)
	if err != nil {
		b.respondText(event, "Could not load server settings right now. Please try again later.")
		return
	}

	group, sub := "", ""
	if data.SubCommandGroupName != nil {
		group = *data.SubCommandGroupName
	}

	if data.SubCommandName != nil {
		sub = *data.SubCommandName
	}

	if group == "" && sub == "view" {
		b.respondEmbed(event, settingsEmbed(guildSettings))
		return
	}

	confirmation, err := applySettingsChange(guildSettings, group, sub, data)
	if err != nil {
		b.respondText(event, err.Error())
		return
	}

	if err := b.app.Settings.Save(ctx, guildSettings); err != nil {
		b.respondText(event, "Could not save the settings right now. Please try again later.")
		return
	}

	b.respondText(event, confirmation)
}

// applySettingsChange mutates the settings in place and returns the
// confirmation text for the change.
func applySettingsChange(
	s *types.GuildSetting, group, sub string, data discord.SlashCommandInteractionData,
) (string, error) {
	switch group {
	case "":
		switch sub {
		case "rates":
			if v, ok := data.OptInt("per_message"); ok {
				s.XPPerMessage = int64(v)
			}

			if v, ok := data.OptInt("per_voice_minute"); ok {
				s.XPPerVoiceMinute = int64(v)
			}

			return fmt.Sprintf("XP rates set to %d per message and %d per voice minute.",
				s.XPPerMessage, s.XPPerVoiceMinute), nil
		case "cooldown":
			s.CooldownSeconds = int64(data.Int("seconds"))
			return fmt.Sprintf("Message XP cooldown set to %d seconds.", s.CooldownSeconds), nil
		case "channel":
			if channelID, ok := data.OptSnowflake("channel"); ok {
				s.AnnouncementChannelID = channelID
				return fmt.Sprintf("Level announcements will be posted in <#%d>.", channelID), nil
			}

			s.AnnouncementChannelID = 0

			return "Level announcements disabled.", nil
		case "stacking":
			s.RemovePreviousRewards = !data.Bool("keep_previous")
			if s.RemovePreviousRewards {
				return "Members will keep only their highest reward role.", nil
			}

			return "Members will keep all earned reward roles.", nil
		}
	case "blacklist":
		channelID := data.Snowflake("channel")

		if sub == "add" {
			if !s.IsBlacklisted(channelID) {
				s.BlacklistedChannels = append(s.BlacklistedChannels, channelID)
			}

			return fmt.Sprintf("<#%d> no longer accrues XP.", channelID), nil
		}

		s.BlacklistedChannels = removeSnowflake(s.BlacklistedChannels, channelID)

		return fmt.Sprintf("<#%d> accrues XP again.", channelID), nil
	case "multiplier":
		roleID := data.Snowflake("role")

		if sub == "set" {
			if s.RoleMultipliers == nil {
				s.RoleMultipliers = make(map[snowflake.ID]float64)
			}

			factor := data.Float("factor")
			s.RoleMultipliers[roleID] = factor

			return fmt.Sprintf("<@&%d> now earns XP at %.2fx.", roleID, factor), nil
		}

		delete(s.RoleMultipliers, roleID)

		return fmt.Sprintf("<@&%d> no longer has an XP multiplier.", roleID), nil
	case "reward":
		level := int64(data.Int("level"))

		if sub == "set" {
			if s.LevelRoleRewards == nil {
				s.LevelRoleRewards = make(map[int64]snowflake.ID)
			}

			roleID := data.Snowflake("role")
			s.LevelRoleRewards[level] = roleID

			return fmt.Sprintf("Reaching level %d now grants <@&%d>.", level, roleID), nil
		}

		delete(s.LevelRoleRewards, level)

		return fmt.Sprintf("Level %d no longer grants a role.", level), nil
	case "message":
		level := int64(data.Int("level"))

		if sub == "set" {
			if s.LevelMessages == nil {
				s.LevelMessages = make(map[int64]string)
			}

			s.LevelMessages[level] = data.String("template")

			return fmt.Sprintf("Announcement for level %d updated.", level), nil
		}

		delete(s.LevelMessages, level)

		return fmt.Sprintf("Announcement for level %d removed.", level), nil
	case "managers":
		roleID := data.Snowflake("role")

		if sub == "add" {
			if !s.IsManager([]snowflake.ID{roleID}) {
				s.ManagerRoles = append(s.ManagerRoles, roleID)
			}

			return fmt.Sprintf("<@&%d> can now manage XP.", roleID), nil
		}

		s.ManagerRoles = removeSnowflake(s.ManagerRoles, roleID)

		return fmt.Sprintf("<@&%d> can no longer manage XP.", roleID), nil
	}

	return "", fmt.Errorf("this command is not available")
}

// isManager reports whether the invoking member may use XP commands.
func (b *Bot) isManager(event *events.ApplicationCommandInteractionCreate, guildSettings *types.GuildSetting) bool {
	member := event.Member()
	if member == nil {
		return false
	}

	if member.Permissions.Has(discord.PermissionAdministrator) {
		return true
	}

	return guildSettings.IsManager(member.RoleIDs)
}

// settingsEmbed renders the full configuration for the view subcommand.
func settingsEmbed(s *types.GuildSetting) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("Leveling Settings").
		AddField("Rates", fmt.Sprintf("%d XP per message, %d XP per voice minute", s.XPPerMessage, s.XPPerVoiceMinute), false).
		AddField("Cooldown", fmt.Sprintf("%d seconds", s.CooldownSeconds), true).
		SetColor(embedColor)

	if s.AnnouncementChannelID != 0 {
		builder.AddField("Announcements", fmt.Sprintf("<#%d>", s.AnnouncementChannelID), true)
	} else {
		builder.AddField("Announcements", "disabled", true)
	}

	if s.RemovePreviousRewards {
		builder.AddField("Reward Stacking", "highest role only", true)
	} else {
		builder.AddField("Reward Stacking", "roles accumulate", true)
	}

	if len(s.BlacklistedChannels) > 0 {
		builder.AddField("Blacklisted Channels", mentionList(s.BlacklistedChannels, "<#%d>"), false)
	}

	if len(s.ManagerRoles) > 0 {
		builder.AddField("Manager Roles", mentionList(s.ManagerRoles, "<@&%d>"), false)
	}

	if len(s.RoleMultipliers) > 0 {
		var lines []string
		for roleID, factor := range s.RoleMultipliers {
			lines = append(lines, fmt.Sprintf("<@&%d> %.2fx", roleID, factor))
		}

		sort.Strings(lines)
		builder.AddField("Multipliers", strings.Join(lines, "\n"), false)
	}

	if len(s.LevelRoleRewards) > 0 {
		levels := make([]int64, 0, len(s.LevelRoleRewards))
		for level := range s.LevelRoleRewards {
			levels = append(levels, level)
		}

		sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

		var lines []string
		for _, level := range levels {
			lines = append(lines, fmt.Sprintf("Level %d → <@&%d>", level, s.LevelRoleRewards[level]))
		}

		builder.AddField("Role Rewards", strings.Join(lines, "\n"), false)
	}

	return builder.Build()
}

func mentionList(ids []snowflake.ID, format string) string {
	mentions := make([]string, 0, len(ids))
	for _, id := range ids {
		mentions = append(mentions, fmt.Sprintf(format, id))
	}

	return strings.Join(mentions, " ")
}

func removeSnowflake(ids []snowflake.ID, target snowflake.ID) []snowflake.ID {
	out := ids[:0]

	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}

	return out
}
