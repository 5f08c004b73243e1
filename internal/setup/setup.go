// Package setup bootstraps the application's shared infrastructure in
// dependency order and tears it down in reverse.
package setup

import (
	"context"
	"time"

	"github.com/robalyx/guildxp/internal/database"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/robalyx/guildxp/internal/redis"
	"github.com/robalyx/guildxp/internal/settings"
	"github.com/robalyx/guildxp/internal/setup/config"
	"github.com/robalyx/guildxp/internal/setup/logger"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config     // Application configuration
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Database connection pool
	RedisManager *redis.Manager     // Redis connection manager
	Settings     *settings.Provider // Cached guild settings access
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	appLogger, dbLogger, err := logger.New(&cfg.Debug)
	if err != nil {
		return nil, err
	}

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Redis, appLogger)

	// Initialize database with automatic migrations
	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, settingDefaults(cfg), dbLogger, true)
	if err != nil {
		return nil, err
	}

	// Settings provider caches guild settings in Redis
	cacheClient, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		return nil, err
	}

	settingsProvider := settings.NewProvider(
		db.Model().Setting(),
		cacheClient,
		time.Duration(cfg.Redis.SettingsCacheTTL)*time.Second,
		appLogger,
	)

	// Bundle all initialized components
	return &App{
		Config:       cfg,
		Logger:       appLogger,
		DBLogger:     dbLogger,
		DB:           db,
		RedisManager: redisManager,
		Settings:     settingsProvider,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup() {
	if err := s.DB.Close(); err != nil {
		s.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	s.RedisManager.Close()

	_ = s.Logger.Sync()
	_ = s.DBLogger.Sync()
}

// settingDefaults builds the settings row seeded for unconfigured guilds.
func settingDefaults(cfg *config.Config) types.GuildSetting {
	return types.GuildSetting{
		XPPerMessage:     cfg.XPDefaults.XPPerMessage,
		XPPerVoiceMinute: cfg.XPDefaults.XPPerVoiceMinute,
		CooldownSeconds:  cfg.XPDefaults.CooldownSeconds,
	}
}
