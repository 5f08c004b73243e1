package leveling_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/robalyx/guildxp/internal/leveling"
	"github.com/robalyx/guildxp/internal/xp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID     = snowflake.ID(1)
	memberX     = snowflake.ID(10)
	memberY     = snowflake.ID(11)
	channelText = snowflake.ID(100)
	channelVoxA = snowflake.ID(200)
	channelVoxB = snowflake.ID(201)
)

type staticSettings struct {
	settings *types.GuildSetting
}

func (p staticSettings) Get(context.Context, snowflake.ID) (*types.GuildSetting, error) {
	return p.settings, nil
}

type staticRoles struct {
	roles []snowflake.ID
}

func (r staticRoles) MemberRoles(context.Context, snowflake.ID, snowflake.ID) ([]snowflake.ID, error) {
	return r.roles, nil
}

// flakyStore fails every mutation for a chosen member, simulating a
// storage hiccup confined to one key.
type flakyStore struct {
	leveling.Store

	failFor snowflake.ID
}

func (f *flakyStore) Update(
	ctx context.Context, guildID, memberID snowflake.ID, fn func(*types.MemberXP) error,
) (*types.MemberXP, *types.MemberXP, error) {
	if memberID == f.failFor {
		return nil, nil, errors.New("connection refused")
	}

	return f.Store.Update(ctx, guildID, memberID, fn)
}

type intentRecorder struct {
	mu      sync.Mutex
	intents []xp.Intent
}

func (r *intentRecorder) handle(_ context.Context, intents []xp.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.intents = append(r.intents, intents...)
}

func (r *intentRecorder) all() []xp.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]xp.Intent(nil), r.intents...)
}

func defaultSettings() *types.GuildSetting {
	return &types.GuildSetting{
		GuildID:          guildID,
		XPPerMessage:     15,
		XPPerVoiceMinute: 10,
		CooldownSeconds:  60,
		LevelRoleRewards: map[int64]snowflake.ID{5: snowflake.ID(500)},
	}
}

func setupEngine(t *testing.T, settings *types.GuildSetting) (*leveling.Engine, *leveling.MemoryStore, *intentRecorder) {
	t.Helper()

	store := leveling.NewMemoryStore()
	recorder := &intentRecorder{}

	engine := leveling.NewEngine(store, staticSettings{settings: settings}, staticRoles{}, zap.NewNop())
	engine.OnIntents(recorder.handle)

	return engine, store, recorder
}

func TestEngine_MessageCooldownGate(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())
	ctx := t.Context()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, engine.HandleMessage(ctx, guildID, memberX, channelText, nil, start))
	require.NoError(t, engine.HandleMessage(ctx, guildID, memberX, channelText, nil, start.Add(time.Second)))

	status, err := engine.MemberStatus(ctx, guildID, memberX)
	require.NoError(t, err)
	assert.Equal(t, int64(15), status.TotalXP)
	assert.Equal(t, int64(1), status.MessageCount)
	assert.Equal(t, start, status.LastMessageAt)
}

func TestEngine_BlacklistedMessageKeepsCooldownOpen(t *testing.T) {
	t.Parallel()

	settings := defaultSettings()
	settings.BlacklistedChannels = []snowflake.ID{channelText}

	engine, _, _ := setupEngine(t, settings)
	ctx := t.Context()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// A blacklisted message must not advance the cooldown: a message in
	// an eligible channel one second later still earns XP.
	require.NoError(t, engine.HandleMessage(ctx, guildID, memberX, channelText, nil, start))
	require.NoError(t, engine.HandleMessage(ctx, guildID, memberX, snowflake.ID(101), nil, start.Add(time.Second)))

	status, err := engine.MemberStatus(ctx, guildID, memberX)
	require.NoError(t, err)
	assert.Equal(t, int64(15), status.TotalXP)
	assert.Equal(t, int64(1), status.MessageCount)
}

func TestEngine_DeltaCommutativity(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())
	ctx := t.Context()

	_, err := engine.AdjustXP(ctx, guildID, memberX, leveling.AdjustAdd, 120)
	require.NoError(t, err)
	_, err = engine.AdjustXP(ctx, guildID, memberX, leveling.AdjustAdd, 305)
	require.NoError(t, err)

	_, err = engine.AdjustXP(ctx, guildID, memberY, leveling.AdjustAdd, 305)
	require.NoError(t, err)
	_, err = engine.AdjustXP(ctx, guildID, memberY, leveling.AdjustAdd, 120)
	require.NoError(t, err)

	statusX, err := engine.MemberStatus(ctx, guildID, memberX)
	require.NoError(t, err)
	statusY, err := engine.MemberStatus(ctx, guildID, memberY)
	require.NoError(t, err)

	assert.Equal(t, statusX.TotalXP, statusY.TotalXP)
}

func TestEngine_RemoveClampsAtZero(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())
	ctx := t.Context()

	_, err := engine.AdjustXP(ctx, guildID, memberX, leveling.AdjustAdd, 50)
	require.NoError(t, err)

	adj, err := engine.AdjustXP(ctx, guildID, memberX, leveling.AdjustRemove, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(50), adj.OldXP)
	assert.Zero(t, adj.NewXP)
	assert.Zero(t, adj.NewLevel)
}

func TestEngine_AdjustRejectsNegativeAmounts(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())

	_, err := engine.AdjustXP(t.Context(), guildID, memberX, leveling.AdjustSet, -1)
	require.ErrorIs(t, err, leveling.ErrInvalidAdjustment)
}

func TestEngine_MultiLevelCrossingIntents(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())
	ctx := t.Context()

	_, err := engine.AdjustXP(ctx, guildID, memberX, leveling.AdjustSet, xp.ThresholdFor(4))
	require.NoError(t, err)

	adj, err := engine.AdjustXP(ctx, guildID, memberX, leveling.AdjustAdd, xp.ThresholdFor(7)-xp.ThresholdFor(4))
	require.NoError(t, err)

	require.Len(t, adj.Intents, 3)
	assert.Equal(t, int64(5), adj.Intents[0].Level)
	assert.Equal(t, int64(6), adj.Intents[1].Level)
	assert.Equal(t, int64(7), adj.Intents[2].Level)
	assert.Equal(t, snowflake.ID(500), adj.Intents[0].RoleID)
}

func TestEngine_LoweringXPEmitsNoIntents(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())
	ctx := t.Context()

	_, err := engine.AdjustXP(ctx, guildID, memberX, leveling.AdjustSet, xp.ThresholdFor(7))
	require.NoError(t, err)

	adj, err := engine.AdjustXP(ctx, guildID, memberX, leveling.AdjustSet, xp.ThresholdFor(4))
	require.NoError(t, err)
	assert.Empty(t, adj.Intents)
}

func TestEngine_VoiceFlushOnMove(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())
	ctx := t.Context()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Join A at t=0, move to B at t=125s, leave at t=190s: 2 minutes
	// bank at the move and 1 minute at the leave, 30 XP total. The
	// fractional seconds at each boundary are dropped, never carried.
	voxA := channelVoxA
	voxB := channelVoxB

	engine.HandleVoiceState(ctx, guildID, memberX, nil, &voxA, start)
	engine.HandleVoiceState(ctx, guildID, memberX, &voxA, &voxB, start.Add(125*time.Second))
	engine.HandleVoiceState(ctx, guildID, memberX, &voxB, nil, start.Add(190*time.Second))

	status, err := engine.MemberStatus(ctx, guildID, memberX)
	require.NoError(t, err)
	assert.Equal(t, int64(30), status.TotalXP)
	assert.Equal(t, int64(3), status.VoiceMinutes)
	assert.Zero(t, engine.OpenVoiceSessions())
}

func TestEngine_BlacklistedVoiceChannel(t *testing.T) {
	t.Parallel()

	settings := defaultSettings()
	settings.BlacklistedChannels = []snowflake.ID{channelVoxA}

	engine, _, _ := setupEngine(t, settings)
	ctx := t.Context()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	voxA := channelVoxA
	voxB := channelVoxB

	engine.HandleVoiceState(ctx, guildID, memberX, nil, &voxA, start)
	engine.HandleVoiceState(ctx, guildID, memberX, &voxA, &voxB, start.Add(125*time.Second))
	engine.HandleVoiceState(ctx, guildID, memberX, &voxB, nil, start.Add(190*time.Second))

	// Time in the blacklisted channel still transitions the session but
	// banks nothing; only the minute in channel B counts.
	status, err := engine.MemberStatus(ctx, guildID, memberX)
	require.NoError(t, err)
	assert.Equal(t, int64(10), status.TotalXP)
	assert.Equal(t, int64(1), status.VoiceMinutes)
}

func TestEngine_MuteUpdateDoesNotRestartSession(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())
	ctx := t.Context()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	voxA := channelVoxA

	engine.HandleVoiceState(ctx, guildID, memberX, nil, &voxA, start)
	// Mute toggles arrive as voice state updates with an unchanged channel.
	engine.HandleVoiceState(ctx, guildID, memberX, &voxA, &voxA, start.Add(30*time.Second))
	engine.HandleVoiceState(ctx, guildID, memberX, &voxA, nil, start.Add(60*time.Second))

	status, err := engine.MemberStatus(ctx, guildID, memberX)
	require.NoError(t, err)
	assert.Equal(t, int64(10), status.TotalXP)
}

func TestEngine_FlushAllPartialFailure(t *testing.T) {
	t.Parallel()

	store := leveling.NewMemoryStore()
	flaky := &flakyStore{Store: store, failFor: memberY}

	engine := leveling.NewEngine(flaky, staticSettings{settings: defaultSettings()}, staticRoles{}, zap.NewNop())
	ctx := t.Context()

	joinedAt := time.Now().Add(-2*time.Minute - 30*time.Second)
	voxA := channelVoxA

	engine.HandleVoiceState(ctx, guildID, memberX, nil, &voxA, joinedAt)
	engine.HandleVoiceState(ctx, guildID, memberY, nil, &voxA, joinedAt)

	require.NoError(t, engine.FlushAll(ctx))
	assert.Zero(t, engine.OpenVoiceSessions())

	// Member X's flush committed on its own; member Y's failed flush was
	// discarded without touching committed state, so a gateway replay
	// can safely reopen the session without double-counting.
	statusX, err := engine.MemberStatus(ctx, guildID, memberX)
	require.NoError(t, err)
	assert.Equal(t, int64(20), statusX.TotalXP)

	statusY, err := engine.MemberStatus(ctx, guildID, memberY)
	require.NoError(t, err)
	assert.Zero(t, statusY.TotalXP)
}

func TestEngine_MessageStorageFailureSurfaces(t *testing.T) {
	t.Parallel()

	store := leveling.NewMemoryStore()
	flaky := &flakyStore{Store: store, failFor: memberX}

	engine := leveling.NewEngine(flaky, staticSettings{settings: defaultSettings()}, staticRoles{}, zap.NewNop())

	err := engine.HandleMessage(t.Context(), guildID, memberX, channelText, nil, time.Now())
	require.ErrorIs(t, err, leveling.ErrStorageUnavailable)
}

func TestEngine_RecomputeFromActivity(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())
	ctx := t.Context()

	messages := int64(100)
	minutes := int64(60)

	adj, err := engine.RecomputeFromActivity(ctx, guildID, memberX, &messages, &minutes)
	require.NoError(t, err)
	assert.Equal(t, int64(100*15+60*10), adj.NewXP)

	// Omitting a count keeps the stored value.
	moreMessages := int64(200)

	adj, err = engine.RecomputeFromActivity(ctx, guildID, memberX, &moreMessages, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(200*15+60*10), adj.NewXP)

	_, err = engine.RecomputeFromActivity(ctx, guildID, memberX, nil, nil)
	require.ErrorIs(t, err, leveling.ErrInvalidAdjustment)
}

func TestEngine_UnknownMemberReadsAsZero(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())

	status, err := engine.MemberStatus(t.Context(), guildID, snowflake.ID(999))
	require.NoError(t, err)
	assert.Zero(t, status.TotalXP)
	assert.Zero(t, status.Level)
	assert.Equal(t, int64(xp.LevelCost), status.XPForNext)
}

func TestEngine_Leaderboard(t *testing.T) {
	t.Parallel()

	engine, _, _ := setupEngine(t, defaultSettings())
	ctx := t.Context()

	members := []struct {
		id snowflake.ID
		xp int64
	}{
		{snowflake.ID(30), 500},
		{snowflake.ID(20), 1000},
		{snowflake.ID(40), 500},
		{snowflake.ID(50), 2000},
	}

	for _, m := range members {
		_, err := engine.AdjustXP(ctx, guildID, m.id, leveling.AdjustSet, m.xp)
		require.NoError(t, err)
	}

	page, err := engine.Leaderboard(ctx, guildID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Entries, 4)
	assert.Equal(t, 4, page.TotalMembers)

	// Descending XP; the tie at 500 breaks by ascending member ID, and
	// tied members still get distinct positional ranks.
	assert.Equal(t, snowflake.ID(50), page.Entries[0].MemberID)
	assert.Equal(t, 1, page.Entries[0].Rank)
	assert.Equal(t, snowflake.ID(20), page.Entries[1].MemberID)
	assert.Equal(t, snowflake.ID(30), page.Entries[2].MemberID)
	assert.Equal(t, 3, page.Entries[2].Rank)
	assert.Equal(t, snowflake.ID(40), page.Entries[3].MemberID)
	assert.Equal(t, 4, page.Entries[3].Rank)

	// Repeated reads produce the same order absent writes.
	again, err := engine.Leaderboard(ctx, guildID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, page.Entries, again.Entries)

	// Pagination slices the same total order.
	second, err := engine.Leaderboard(ctx, guildID, 2, 2)
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	assert.Equal(t, snowflake.ID(30), second.Entries[0].MemberID)
	assert.Equal(t, 3, second.Entries[0].Rank)
}

func TestEngine_MessageIntentsDispatchToHandler(t *testing.T) {
	t.Parallel()

	settings := defaultSettings()
	settings.XPPerMessage = xp.ThresholdFor(1)
	settings.LevelMessages = map[int64]string{1: "{user} hit level 1"}

	engine, _, recorder := setupEngine(t, settings)

	require.NoError(t, engine.HandleMessage(t.Context(), guildID, memberX, channelText, nil, time.Now()))

	intents := recorder.all()
	require.Len(t, intents, 1)
	assert.Equal(t, int64(1), intents[0].Level)
	assert.Equal(t, "{user} hit level 1", intents[0].Template)
}
