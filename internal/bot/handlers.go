package bot

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// eventTimeout bounds how long a single gateway event may hold a
// database connection.
const eventTimeout = 10 * time.Second

// handleMessageCreate feeds guild messages into the engine. Bots and
// webhooks never earn XP; failures are logged and the event dropped so
// a storage outage cannot back up the gateway.
func (b *Bot) handleMessageCreate(event *events.MessageCreate) {
	if event.GuildID == nil || event.Message.Author.Bot || event.Message.WebhookID != nil {
		return
	}

	var roleIDs []snowflake.ID
	if event.Message.Member != nil {
		roleIDs = event.Message.Member.RoleIDs
	}

	guildID := *event.GuildID
	memberID := event.Message.Author.ID
	channelID := event.ChannelID
	ts := event.Message.CreatedAt

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		if err := b.engine.HandleMessage(ctx, guildID, memberID, channelID, roleIDs, ts); err != nil {
			b.logger.Warn("Dropped message xp event",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("memberID", uint64(memberID)),
				zap.Error(err))
		}
	}()
}

// handleVoiceStateUpdate routes channel transitions into the voice
// session tracker. Bots do not accrue voice time.
func (b *Bot) handleVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	if event.Member.User.Bot {
		return
	}

	b.engine.HandleVoiceState(
		context.Background(),
		event.VoiceState.GuildID,
		event.VoiceState.UserID,
		event.OldVoiceState.ChannelID,
		event.VoiceState.ChannelID,
		time.Now(),
	)
}
