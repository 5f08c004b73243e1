// Package leveling ties the pure XP rules to durable member state: it
// ingests activity events, applies the accrual policy atomically per
// member, tracks voice sessions, and emits reward intents on level
// crossings.
package leveling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/robalyx/guildxp/internal/voice"
	"github.com/robalyx/guildxp/internal/xp"
	"go.uber.org/zap"
)

// AdjustMode selects how an admin adjustment is applied.
type AdjustMode int

const (
	AdjustAdd AdjustMode = iota
	AdjustRemove
	AdjustSet
)

// String returns the mode name for logging.
func (m AdjustMode) String() string {
	switch m {
	case AdjustAdd:
		return "add"
	case AdjustRemove:
		return "remove"
	case AdjustSet:
		return "set"
	default:
		return "unknown"
	}
}

// Adjustment reports the outcome of an admin XP operation. Intents for
// crossed levels are returned to the caller rather than dispatched, so
// the command layer controls their execution.
type Adjustment struct {
	OldXP    int64
	NewXP    int64
	OldLevel int64
	NewLevel int64
	Intents  []xp.Intent
}

// MemberStatus is the point-in-time view of a member's progress.
type MemberStatus struct {
	TotalXP       int64
	Level         int64
	XPIntoLevel   int64
	XPForNext     int64
	MessageCount  int64
	VoiceMinutes  int64
	LastMessageAt time.Time
}

// LeaderboardEntry is one row of a leaderboard page. Rank is positional
// and 1-based; tied members get distinct ranks in tiebreak order.
type LeaderboardEntry struct {
	MemberID snowflake.ID
	TotalXP  int64
	Level    int64
	Rank     int
}

// LeaderboardPage is a page of ranked members plus the guild total.
type LeaderboardPage struct {
	Entries      []LeaderboardEntry
	Page         int
	PageSize     int
	TotalMembers int
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// IntentHandler receives reward intents produced by activity events. The
// handler executes side effects; its failures never roll back XP state.
type IntentHandler func(ctx context.Context, intents []xp.Intent)

// Engine is the experience and leveling engine.
type Engine struct {
	store    Store
	settings SettingsProvider
	roles    RoleSource
	tracker  *voice.Tracker
	emit     IntentHandler
	logger   *zap.Logger
}

// NewEngine wires the engine's collaborators and starts an internal voice
// session tracker that flushes accumulated time back into the store.
func NewEngine(store Store, settings SettingsProvider, roles RoleSource, logger *zap.Logger) *Engine {
	e := &Engine{
		store:    store,
		settings: settings,
		roles:    roles,
		emit:     func(context.Context, []xp.Intent) {},
		logger:   logger.Named("leveling"),
	}
	e.tracker = voice.NewTracker(e.applyVoiceMinutes, logger)

	return e
}

// OnIntents registers the handler that executes reward intents emitted
// by activity events. Admin adjustments return their intents instead.
func (e *Engine) OnIntents(handler IntentHandler) {
	if handler != nil {
		e.emit = handler
	}
}

// HandleMessage processes a posted message. Accrual gates run inside the
// per-member atomic update so concurrent messages cannot both beat the
// cooldown; denied messages commit nothing.
func (e *Engine) HandleMessage(
	ctx context.Context, guildID, memberID, channelID snowflake.ID,
	roleIDs []snowflake.ID, ts time.Time,
) error {
	settings, err := e.settings.Get(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to resolve guild settings: %w", err)
	}

	before, after, err := e.store.Update(ctx, guildID, memberID, func(r *types.MemberXP) error {
		delta, advance := xp.MessageXP(settings, channelID, roleIDs, r.LastMessageAt, ts)
		if !advance {
			return ErrNoChange
		}

		r.TotalXP += delta
		r.MessageCount++
		r.LastMessageAt = ts

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}

		return fmt.Errorf("%w: message xp update failed: %w", ErrStorageUnavailable, err)
	}

	e.emit(ctx, xp.BuildIntents(guildID, memberID, before.TotalXP, after.TotalXP, settings))

	return nil
}

// HandleVoiceState routes a gateway voice state change into the session
// tracker. A nil channel means not connected on that side of the
// transition; equal channels are presence-only updates and are ignored.
func (e *Engine) HandleVoiceState(
	ctx context.Context, guildID, memberID snowflake.ID,
	oldChannelID, newChannelID *snowflake.ID, ts time.Time,
) {
	switch {
	case newChannelID == nil && oldChannelID == nil:
	case oldChannelID == nil:
		e.tracker.Join(ctx, guildID, memberID, *newChannelID, ts)
	case newChannelID == nil:
		e.tracker.Leave(ctx, guildID, memberID, ts)
	case *oldChannelID == *newChannelID:
	default:
		e.tracker.Move(ctx, guildID, memberID, *newChannelID, ts)
	}
}

// applyVoiceMinutes banks flushed voice minutes as XP. It runs once per
// closed session interval; the multiplier uses the member's roles at
// flush time and blacklisted channels bank nothing at all.
func (e *Engine) applyVoiceMinutes(ctx context.Context, guildID, memberID, channelID snowflake.ID, minutes int64) {
	settings, err := e.settings.Get(ctx, guildID)
	if err != nil {
		e.logger.Error("Dropping voice flush, settings unavailable",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("memberID", uint64(memberID)),
			zap.Error(err))

		return
	}

	if settings.IsBlacklisted(channelID) {
		return
	}

	roleIDs, err := e.roles.MemberRoles(ctx, guildID, memberID)
	if err != nil {
		e.logger.Warn("Failed to resolve member roles, using base multiplier",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("memberID", uint64(memberID)),
			zap.Error(err))

		roleIDs = nil
	}

	delta := xp.VoiceMinutesXP(settings, channelID, roleIDs, minutes)

	before, after, err := e.store.Update(ctx, guildID, memberID, func(r *types.MemberXP) error {
		r.TotalXP += delta
		r.VoiceMinutes += minutes

		return nil
	})
	if err != nil {
		e.logger.Error("Dropping voice flush, storage unavailable",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("memberID", uint64(memberID)),
			zap.Int64("minutes", minutes),
			zap.Error(err))

		return
	}

	e.emit(ctx, xp.BuildIntents(guildID, memberID, before.TotalXP, after.TotalXP, settings))
}

// AdjustXP applies an admin XP operation. Removals clamp at zero rather
// than failing; negative amounts are rejected. Level-up intents for any
// crossed levels are returned; lowering XP never emits revocations.
func (e *Engine) AdjustXP(
	ctx context.Context, guildID, memberID snowflake.ID, mode AdjustMode, amount int64,
) (*Adjustment, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidAdjustment)
	}

	settings, err := e.settings.Get(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guild settings: %w", err)
	}

	before, after, err := e.store.Update(ctx, guildID, memberID, func(r *types.MemberXP) error {
		switch mode {
		case AdjustAdd:
			r.TotalXP += amount
		case AdjustRemove:
			r.TotalXP -= amount
		case AdjustSet:
			r.TotalXP = amount
		default:
			return fmt.Errorf("%w: unknown mode %d", ErrInvalidAdjustment, mode)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidAdjustment) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: xp adjustment failed: %w", ErrStorageUnavailable, err)
	}

	e.logger.Info("Applied admin xp adjustment",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("memberID", uint64(memberID)),
		zap.String("mode", mode.String()),
		zap.Int64("amount", amount),
		zap.Int64("oldXP", before.TotalXP),
		zap.Int64("newXP", after.TotalXP))

	return &Adjustment{
		OldXP:    before.TotalXP,
		NewXP:    after.TotalXP,
		OldLevel: before.Level,
		NewLevel: after.Level,
		Intents:  xp.BuildIntents(guildID, memberID, before.TotalXP, after.TotalXP, settings),
	}, nil
}

// RecomputeFromActivity rewrites a member's record from activity totals:
// the XP becomes the equivalent of the given message and voice counts at
// the guild's base rates. Nil counts keep the member's recorded value.
func (e *Engine) RecomputeFromActivity(
	ctx context.Context, guildID, memberID snowflake.ID, messages, voiceMinutes *int64,
) (*Adjustment, error) {
	if messages == nil && voiceMinutes == nil {
		return nil, fmt.Errorf("%w: at least one activity count is required", ErrInvalidAdjustment)
	}

	if (messages != nil && *messages < 0) || (voiceMinutes != nil && *voiceMinutes < 0) {
		return nil, fmt.Errorf("%w: activity counts must not be negative", ErrInvalidAdjustment)
	}

	settings, err := e.settings.Get(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guild settings: %w", err)
	}

	before, after, err := e.store.Update(ctx, guildID, memberID, func(r *types.MemberXP) error {
		if messages != nil {
			r.MessageCount = *messages
		}

		if voiceMinutes != nil {
			r.VoiceMinutes = *voiceMinutes
		}

		r.TotalXP = xp.ActivityXP(settings, r.MessageCount, r.VoiceMinutes)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: activity recompute failed: %w", ErrStorageUnavailable, err)
	}

	return &Adjustment{
		OldXP:    before.TotalXP,
		NewXP:    after.TotalXP,
		OldLevel: before.Level,
		NewLevel: after.Level,
		Intents:  xp.BuildIntents(guildID, memberID, before.TotalXP, after.TotalXP, settings),
	}, nil
}

// MemberStatus returns a member's current progress. Unknown members read
// as a zero-value record, not an error.
func (e *Engine) MemberStatus(ctx context.Context, guildID, memberID snowflake.ID) (*MemberStatus, error) {
	record, err := e.store.Get(ctx, guildID, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: member status read failed: %w", ErrStorageUnavailable, err)
	}

	progress := xp.ProgressAt(record.TotalXP)

	return &MemberStatus{
		TotalXP:       record.TotalXP,
		Level:         progress.Level,
		XPIntoLevel:   progress.IntoLevel,
		XPForNext:     progress.ForNext,
		MessageCount:  record.MessageCount,
		VoiceMinutes:  record.VoiceMinutes,
		LastMessageAt: record.LastMessageAt,
	}, nil
}

// Leaderboard returns one page of the guild's ranking. Page numbers are
// 1-based and clamp to 1; the page size defaults to 10 and caps at 100.
func (e *Engine) Leaderboard(ctx context.Context, guildID snowflake.ID, page, pageSize int) (*LeaderboardPage, error) {
	if page < 1 {
		page = 1
	}

	if pageSize <= 0 {
		pageSize = defaultPageSize
	} else if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := (page - 1) * pageSize

	records, err := e.store.TopMembers(ctx, guildID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: leaderboard read failed: %w", ErrStorageUnavailable, err)
	}

	total, err := e.store.CountMembers(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: member count failed: %w", ErrStorageUnavailable, err)
	}

	entries := make([]LeaderboardEntry, 0, len(records))
	for i, record := range records {
		entries = append(entries, LeaderboardEntry{
			MemberID: record.MemberID,
			TotalXP:  record.TotalXP,
			Level:    record.Level,
			Rank:     offset + i + 1,
		})
	}

	return &LeaderboardPage{
		Entries:      entries,
		Page:         page,
		PageSize:     pageSize,
		TotalMembers: total,
	}, nil
}

// FlushAll force-closes every open voice session, banking accumulated
// time before a shutdown. Each member's flush commits independently.
func (e *Engine) FlushAll(ctx context.Context) error {
	return e.tracker.FlushAll(ctx)
}

// Checkpoint banks the whole minutes of every open voice session without
// closing it. Run periodically so a crash loses at most one interval.
func (e *Engine) Checkpoint(ctx context.Context) {
	e.tracker.Checkpoint(ctx)
}

// OpenVoiceSessions reports the number of currently tracked sessions.
func (e *Engine) OpenVoiceSessions() int {
	return e.tracker.OpenSessions()
}
