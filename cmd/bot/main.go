package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robalyx/guildxp/internal/bot"
	"github.com/robalyx/guildxp/internal/setup"
)

func main() {
	ctx := context.Background()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup()

	// Create bot instance
	discordBot, err := bot.New(app)
	if err != nil {
		log.Printf("Failed to create bot: %v", err)
		return
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(ctx); err != nil {
		log.Printf("Failed to start bot: %v", err)
		return
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	// This ensures open voice sessions are flushed before closing
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Cleanly close down the Discord session
	discordBot.Close()
}
