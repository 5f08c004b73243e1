// Package voice tracks open voice sessions and converts them into
// whole-minute time deltas when they close. It keeps no durable state:
// after a restart the gateway replays current voice presence as fresh
// joins.
package voice

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// shardCount spreads session keys over independent locks so members do
// not contend with each other.
const shardCount = 16

// flushConcurrency bounds the fan-out of FlushAll and Checkpoint.
const flushConcurrency = 8

// FlushFunc receives the whole minutes a member spent in a channel when
// a session closes. Each call is its own atomic unit; a failure or a
// cancellation between calls never corrupts other members' state.
type FlushFunc func(ctx context.Context, guildID, memberID, channelID snowflake.ID, minutes int64)

type sessionKey struct {
	guildID  snowflake.ID
	memberID snowflake.ID
}

type session struct {
	channelID snowflake.ID
	startedAt time.Time
}

type shard struct {
	mu       sync.Mutex
	sessions map[sessionKey]session
}

// Tracker is the voice session state machine. At most one session is open
// per (guild, member); joins, moves, and leaves are linearizable per key.
type Tracker struct {
	shards [shardCount]*shard
	flush  FlushFunc
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker creates a tracker that reports closed sessions to flush.
func NewTracker(flush FlushFunc, logger *zap.Logger) *Tracker {
	t := &Tracker{
		flush:  flush,
		logger: logger.Named("voice_tracker"),
		now:    time.Now,
	}

	for i := range t.shards {
		t.shards[i] = &shard{sessions: make(map[sessionKey]session)}
	}

	return t
}

func (t *Tracker) shardFor(key sessionKey) *shard {
	return t.shards[(uint64(key.guildID)^uint64(key.memberID))%shardCount]
}

// Join opens a session for the member in the given channel. If a session
// is already open the gateway delivered events out of order; the tracker
// self-heals by treating the join as a move from the stale channel.
func (t *Tracker) Join(ctx context.Context, guildID, memberID, channelID snowflake.ID, ts time.Time) {
	key := sessionKey{guildID: guildID, memberID: memberID}
	s := t.shardFor(key)

	s.mu.Lock()
	prev, open := s.sessions[key]
	s.sessions[key] = session{channelID: channelID, startedAt: ts}
	s.mu.Unlock()

	if open {
		t.logger.Warn("Join with session already open, treating as move",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("memberID", uint64(memberID)),
			zap.Uint64("staleChannelID", uint64(prev.channelID)))
		t.flushSession(ctx, key, prev, ts)
	}
}

// Move closes the member's session and opens a new one in the target
// channel at the same instant. The elapsed time in the old channel is
// flushed before the transition; no interval is lost or double-counted.
func (t *Tracker) Move(ctx context.Context, guildID, memberID, channelID snowflake.ID, ts time.Time) {
	key := sessionKey{guildID: guildID, memberID: memberID}
	s := t.shardFor(key)

	s.mu.Lock()
	prev, open := s.sessions[key]
	s.sessions[key] = session{channelID: channelID, startedAt: ts}
	s.mu.Unlock()

	if !open {
		t.logger.Debug("Move without open session, treating as join",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("memberID", uint64(memberID)))
		return
	}

	t.flushSession(ctx, key, prev, ts)
}

// Leave closes the member's session and flushes the elapsed time. A
// disconnect is handled identically. Leaving without an open session is
// a no-op.
func (t *Tracker) Leave(ctx context.Context, guildID, memberID snowflake.ID, ts time.Time) {
	key := sessionKey{guildID: guildID, memberID: memberID}
	s := t.shardFor(key)

	s.mu.Lock()
	prev, open := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if !open {
		return
	}

	t.flushSession(ctx, key, prev, ts)
}

// FlushAll force-closes every open session as if each member had left at
// the checkpoint instant. Flushes run per member with bounded
// concurrency; a cancellation mid-way leaves already flushed members
// committed and simply discards the rest, which the gateway replay will
// reopen.
func (t *Tracker) FlushAll(ctx context.Context) error {
	now := t.now()
	closed := t.drain()

	p := pool.New().WithContext(ctx).WithMaxGoroutines(flushConcurrency)

	for key, sess := range closed {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			t.flushSession(ctx, key, sess, now)

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return err
	}

	t.logger.Info("Flushed all open voice sessions", zap.Int("count", len(closed)))

	return nil
}

// Checkpoint flushes the whole minutes accumulated by every open session
// and restarts each session at the checkpoint instant, so a crash loses
// at most one checkpoint interval of voice time. Fractional minutes are
// dropped, matching the flush boundary semantics of moves and leaves.
func (t *Tracker) Checkpoint(ctx context.Context) {
	now := t.now()

	type pending struct {
		key  sessionKey
		sess session
	}

	var flushes []pending

	for _, s := range t.shards {
		s.mu.Lock()

		for key, sess := range s.sessions {
			if now.Sub(sess.startedAt) < time.Minute {
				continue
			}

			flushes = append(flushes, pending{key: key, sess: sess})
			s.sessions[key] = session{channelID: sess.channelID, startedAt: now}
		}

		s.mu.Unlock()
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(flushConcurrency)

	for _, f := range flushes {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			t.flushSession(ctx, f.key, f.sess, now)

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		t.logger.Warn("Voice checkpoint interrupted", zap.Error(err))
	}
}

// OpenSessions returns the number of currently open sessions.
func (t *Tracker) OpenSessions() int {
	count := 0

	for _, s := range t.shards {
		s.mu.Lock()
		count += len(s.sessions)
		s.mu.Unlock()
	}

	return count
}

// drain removes and returns every open session.
func (t *Tracker) drain() map[sessionKey]session {
	closed := make(map[sessionKey]session)

	for _, s := range t.shards {
		s.mu.Lock()

		for key, sess := range s.sessions {
			closed[key] = sess
			delete(s.sessions, key)
		}

		s.mu.Unlock()
	}

	return closed
}

// flushSession reports the whole minutes of a closed interval. Sessions
// shorter than a minute transition silently; the fractional remainder is
// never carried over.
func (t *Tracker) flushSession(ctx context.Context, key sessionKey, sess session, endedAt time.Time) {
	elapsed := endedAt.Sub(sess.startedAt)
	if elapsed <= 0 {
		return
	}

	minutes := int64(elapsed / time.Minute)
	if minutes <= 0 {
		return
	}

	t.flush(ctx, key.guildID, key.memberID, sess.channelID, minutes)
}
