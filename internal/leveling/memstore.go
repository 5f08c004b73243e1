package leveling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/guildxp/internal/database/types"
	"github.com/robalyx/guildxp/internal/xp"
)

type memberKey struct {
	guildID  snowflake.ID
	memberID snowflake.ID
}

type memberEntry struct {
	mu     sync.Mutex
	record types.MemberXP
}

// MemoryStore is an in-process Store keyed by (guild, member) with
// per-record locking, so concurrent mutations of different members never
// contend. It backs tests and single-process deployments without
// Postgres; records do not survive a restart.
type MemoryStore struct {
	members sync.Map // memberKey -> *memberEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory member store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) getOrCreate(guildID, memberID snowflake.ID) *memberEntry {
	key := memberKey{guildID: guildID, memberID: memberID}
	if v, ok := s.members.Load(key); ok {
		return v.(*memberEntry)
	}

	entry := &memberEntry{record: types.MemberXP{GuildID: guildID, MemberID: memberID}}
	actual, _ := s.members.LoadOrStore(key, entry)

	return actual.(*memberEntry)
}

// Get returns the latest committed record or a zero-value record.
func (s *MemoryStore) Get(_ context.Context, guildID, memberID snowflake.ID) (*types.MemberXP, error) {
	key := memberKey{guildID: guildID, memberID: memberID}

	v, ok := s.members.Load(key)
	if !ok {
		return &types.MemberXP{GuildID: guildID, MemberID: memberID}, nil
	}

	entry := v.(*memberEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	return entry.record.Clone(), nil
}

// Update applies fn under the record's lock, clamps TotalXP at zero, and
// re-derives the cached level before committing.
func (s *MemoryStore) Update(
	_ context.Context, guildID, memberID snowflake.ID, fn func(*types.MemberXP) error,
) (*types.MemberXP, *types.MemberXP, error) {
	entry := s.getOrCreate(guildID, memberID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	before := entry.record.Clone()
	next := entry.record.Clone()

	if err := fn(next); err != nil {
		return nil, nil, err
	}

	if next.TotalXP < 0 {
		next.TotalXP = 0
	}

	next.Level = xp.LevelAt(next.TotalXP)
	next.UpdatedAt = s.now()
	entry.record = *next

	return before, next.Clone(), nil
}

// TopMembers returns a page of the guild's members ordered by descending
// XP, ties broken by ascending member ID.
func (s *MemoryStore) TopMembers(
	_ context.Context, guildID snowflake.ID, limit, offset int,
) ([]*types.MemberXP, error) {
	records := s.guildRecords(guildID)

	sort.Slice(records, func(i, j int) bool {
		if records[i].TotalXP != records[j].TotalXP {
			return records[i].TotalXP > records[j].TotalXP
		}

		return records[i].MemberID < records[j].MemberID
	})

	if offset >= len(records) {
		return nil, nil
	}

	records = records[offset:]
	if limit < len(records) {
		records = records[:limit]
	}

	return records, nil
}

// CountMembers returns the number of tracked members in the guild.
func (s *MemoryStore) CountMembers(_ context.Context, guildID snowflake.ID) (int, error) {
	return len(s.guildRecords(guildID)), nil
}

func (s *MemoryStore) guildRecords(guildID snowflake.ID) []*types.MemberXP {
	var records []*types.MemberXP

	s.members.Range(func(_, v any) bool {
		entry := v.(*memberEntry)

		entry.mu.Lock()
		if entry.record.GuildID == guildID {
			records = append(records, entry.record.Clone())
		}
		entry.mu.Unlock()

		return true
	})

	return records
}
