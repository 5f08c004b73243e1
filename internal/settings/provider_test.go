package settings_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/robalyx/guildxp/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStore struct {
	settings *types.GuildSetting
	saved    *types.GuildSetting
	err      error
	reads    atomic.Int64
}

func (s *stubStore) GetGuildSettings(_ context.Context, guildID snowflake.ID) (*types.GuildSetting, error) {
	s.reads.Add(1)

	if s.err != nil {
		return nil, s.err
	}

	out := *s.settings
	out.GuildID = guildID

	return &out, nil
}

func (s *stubStore) SaveGuildSettings(_ context.Context, settings *types.GuildSetting) error {
	if s.err != nil {
		return s.err
	}

	s.saved = settings
	s.settings = settings

	return nil
}

func setupTest(t *testing.T, store *stubStore) (*settings.Provider, func()) {
	t.Helper()
	// Start miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Create Redis client
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	provider := settings.NewProvider(store, client, time.Minute, zap.NewNop())

	cleanup := func() {
		mr.Close()
		client.Close()
	}

	return provider, cleanup
}

func defaultStore() *stubStore {
	return &stubStore{
		settings: &types.GuildSetting{
			XPPerMessage:     15,
			XPPerVoiceMinute: 10,
			CooldownSeconds:  60,
		},
	}
}

func TestGetCachesAfterFirstRead(t *testing.T) {
	t.Parallel()

	store := defaultStore()
	provider, cleanup := setupTest(t, store)
	defer cleanup()

	ctx := t.Context()
	guildID := snowflake.ID(42)

	first, err := provider.Get(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), first.XPPerMessage)
	assert.Equal(t, guildID, first.GuildID)

	second, err := provider.Get(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Only the first read hits the database.
	assert.Equal(t, int64(1), store.reads.Load())
}

func TestSaveInvalidatesCache(t *testing.T) {
	t.Parallel()

	store := defaultStore()
	provider, cleanup := setupTest(t, store)
	defer cleanup()

	ctx := t.Context()
	guildID := snowflake.ID(42)

	_, err := provider.Get(ctx, guildID)
	require.NoError(t, err)

	updated := &types.GuildSetting{
		GuildID:         guildID,
		XPPerMessage:    25,
		CooldownSeconds: 30,
	}
	require.NoError(t, provider.Save(ctx, updated))
	require.NotNil(t, store.saved)

	// The next read misses the cache and sees the new values.
	settings, err := provider.Get(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), settings.XPPerMessage)
	assert.Equal(t, int64(2), store.reads.Load())
}

func TestGetSurfacesStoreErrors(t *testing.T) {
	t.Parallel()

	store := &stubStore{err: errors.New("database down")}
	provider, cleanup := setupTest(t, store)
	defer cleanup()

	_, err := provider.Get(t.Context(), snowflake.ID(42))
	require.Error(t, err)
}

func TestDistinctGuildsCacheIndependently(t *testing.T) {
	t.Parallel()

	store := defaultStore()
	provider, cleanup := setupTest(t, store)
	defer cleanup()

	ctx := t.Context()

	a, err := provider.Get(ctx, snowflake.ID(1))
	require.NoError(t, err)
	b, err := provider.Get(ctx, snowflake.ID(2))
	require.NoError(t, err)

	assert.NotEqual(t, a.GuildID, b.GuildID)
	assert.Equal(t, int64(2), store.reads.Load())
}
