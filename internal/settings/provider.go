// Package settings resolves per-guild configuration with a Redis cache
// in front of the Postgres settings model. Activity events read settings
// on every message, so the hot path must not touch the database.
package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/guildxp/internal/database/types"
	"go.uber.org/zap"
)

// CacheKeyPrefix namespaces cached settings entries in Redis.
const CacheKeyPrefix = "guildxp:settings:"

// DefaultCacheTTL bounds how stale a cached entry can get if an
// invalidation is lost.
const DefaultCacheTTL = 5 * time.Minute

// Store is the durable side of the provider, implemented by the
// database settings model.
type Store interface {
	GetGuildSettings(ctx context.Context, guildID snowflake.ID) (*types.GuildSetting, error)
	SaveGuildSettings(ctx context.Context, settings *types.GuildSetting) error
}

// Provider is a read-through settings cache. Cache failures degrade to
// direct database reads; they never fail a lookup on their own.
type Provider struct {
	store  Store
	client rueidis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewProvider creates a Provider over the given store and Redis client.
// A non-positive ttl falls back to DefaultCacheTTL.
func NewProvider(store Store, client rueidis.Client, ttl time.Duration, logger *zap.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Provider{
		store:  store,
		client: client,
		ttl:    ttl,
		logger: logger.Named("settings"),
	}
}

func cacheKey(guildID snowflake.ID) string {
	return fmt.Sprintf("%s%d", CacheKeyPrefix, guildID)
}

// Get returns the guild's settings, from cache when possible.
func (p *Provider) Get(ctx context.Context, guildID snowflake.ID) (*types.GuildSetting, error) {
	key := cacheKey(guildID)

	data, err := p.client.Do(ctx, p.client.B().Get().Key(key).Build()).AsBytes()
	if err == nil {
		settings := &types.GuildSetting{}
		if err := sonic.Unmarshal(data, settings); err == nil {
			return settings, nil
		}

		// A corrupt entry falls through to the database and gets
		// overwritten below.
		p.logger.Warn("Discarding corrupt cached settings", zap.Uint64("guildID", uint64(guildID)))
	} else if !rueidis.IsRedisNil(err) {
		p.logger.Warn("Settings cache read failed",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))
	}

	settings, err := p.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guild settings: %w", err)
	}

	p.cache(ctx, key, settings)

	return settings, nil
}

// Save persists the settings and invalidates the cached entry so the
// next read observes the new values.
func (p *Provider) Save(ctx context.Context, settings *types.GuildSetting) error {
	if err := p.store.SaveGuildSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save guild settings: %w", err)
	}

	p.Invalidate(ctx, settings.GuildID)

	return nil
}

// Invalidate drops the cached entry for a guild. Failures only extend
// staleness until the TTL expires, so they are logged and ignored.
func (p *Provider) Invalidate(ctx context.Context, guildID snowflake.ID) {
	err := p.client.Do(ctx, p.client.B().Del().Key(cacheKey(guildID)).Build()).Error()
	if err != nil {
		p.logger.Warn("Settings cache invalidation failed",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))
	}
}

func (p *Provider) cache(ctx context.Context, key string, settings *types.GuildSetting) {
	data, err := sonic.Marshal(settings)
	if err != nil {
		p.logger.Warn("Failed to serialize settings for cache", zap.Error(err))
		return
	}

	err = p.client.Do(ctx, p.client.B().Set().Key(key).Value(rueidis.BinaryString(data)).Ex(p.ttl).Build()).Error()
	if err != nil {
		p.logger.Warn("Settings cache write failed", zap.Error(err))
	}
}
