// Package bot connects the leveling engine to the Discord gateway. It
// turns message and voice state events into engine calls, executes
// reward intents through the REST API, and serves the slash commands.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	disgobot "github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/robalyx/guildxp/internal/leveling"
	"github.com/robalyx/guildxp/internal/setup"
	"go.uber.org/zap"
)

// Bot handles the Discord connection and routes gateway events into the
// leveling engine.
type Bot struct {
	client  disgobot.Client
	engine  *leveling.Engine
	app     *setup.App
	rewards *RewardExecutor
	logger  *zap.Logger

	checkpointInterval time.Duration
	checkpointStop     chan struct{}
	checkpointDone     chan struct{}
}

// New initializes a Bot instance: it wires the engine over the durable
// member store, attaches the reward executor as the intent handler, and
// configures the Discord client with the required gateway intents.
func New(app *setup.App) (*Bot, error) {
	roles := &restRoleSource{}
	engine := leveling.NewEngine(app.DB.Model().Member(), app.Settings, roles, app.Logger)
	rewards := NewRewardExecutor(app.Settings, app.DB.Model().Reward(), app.Logger)
	engine.OnIntents(rewards.Execute)

	b := &Bot{
		engine:             engine,
		app:                app,
		rewards:            rewards,
		logger:             app.Logger.Named("bot"),
		checkpointInterval: time.Duration(app.Config.Voice.CheckpointInterval) * time.Minute,
		checkpointStop:     make(chan struct{}),
		checkpointDone:     make(chan struct{}),
	}

	// Configure Discord client with required gateway intents and event handlers
	client, err := disgo.New(app.Config.Discord.Token,
		disgobot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentGuildVoiceStates,
			),
		),
		disgobot.WithEventListeners(&events.ListenerAdapter{
			OnMessageCreate:                 b.handleMessageCreate,
			OnGuildVoiceStateUpdate:         b.handleVoiceStateUpdate,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, err
	}

	b.client = client
	roles.client = client
	rewards.client = client

	return b, nil
}

// Start registers global commands with Discord, opens the gateway
// connection, and launches the periodic voice session checkpoint.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	_, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), commands())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(ctx); err != nil {
		return err
	}

	go b.runCheckpoints()

	return nil
}

// Close flushes all open voice sessions so accumulated time is banked,
// then shuts down the gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")

	close(b.checkpointStop)
	<-b.checkpointDone

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.engine.FlushAll(ctx); err != nil {
		b.logger.Error("Failed to flush voice sessions on shutdown", zap.Error(err))
	}

	b.client.Close(context.Background())
}

// runCheckpoints periodically banks whole minutes of open voice
// sessions so a crash loses at most one interval of voice time.
func (b *Bot) runCheckpoints() {
	defer close(b.checkpointDone)

	if b.checkpointInterval <= 0 {
		return
	}

	ticker := time.NewTicker(b.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			b.engine.Checkpoint(ctx)
			cancel()

			b.logger.Debug("Voice session checkpoint completed",
				zap.Int("openSessions", b.engine.OpenVoiceSessions()))
		case <-b.checkpointStop:
			return
		}
	}
}
