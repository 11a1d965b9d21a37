// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/chore-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements generic.Store. A single mutex serialises writers, which
// gives IncrementChoreBadge and InsertAchievement the same atomicity the
// SQLite store gets from its transactions and unique indexes.
type Memory struct {
	mu           sync.RWMutex
	entries      map[generic.KidID][]generic.PointEntry
	idempotency  map[string]bool
	families     map[generic.FamilyID]generic.Family
	kids         map[generic.KidID]generic.Kid
	chores       map[generic.ChoreID]generic.Chore
	choreBadges  map[badgeKey]generic.ChoreBadge
	achievements map[generic.KidID]map[generic.BadgeID]generic.AchievementBadge
}

type badgeKey struct {
	KidID   generic.KidID
	ChoreID generic.ChoreID
}

func NewMemory() *Memory {
	return &Memory{
		entries:      make(map[generic.KidID][]generic.PointEntry),
		idempotency:  make(map[string]bool),
		families:     make(map[generic.FamilyID]generic.Family),
		kids:         make(map[generic.KidID]generic.Kid),
		chores:       make(map[generic.ChoreID]generic.Chore),
		choreBadges:  make(map[badgeKey]generic.ChoreBadge),
		achievements: make(map[generic.KidID]map[generic.BadgeID]generic.AchievementBadge),
	}
}

var _ generic.Store = (*Memory)(nil)

// =============================================================================
// LEDGER
// =============================================================================

// AppendEntry adds a single entry. Append-only.
func (m *Memory) AppendEntry(_ context.Context, e generic.PointEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.IdempotencyKey != "" && m.idempotency[e.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	if _, ok := m.kids[e.KidID]; !ok {
		return &generic.StaleReferenceError{KidID: e.KidID, Err: generic.ErrNotFound}
	}
	if e.ChoreID != nil {
		if _, ok := m.chores[*e.ChoreID]; !ok {
			return &generic.StaleReferenceError{KidID: e.KidID, ChoreID: *e.ChoreID, Err: generic.ErrNotFound}
		}
		id := *e.ChoreID
		e.ChoreID = &id
	}

	entries := m.entries[e.KidID]
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Date.After(e.Date)
	})
	entries = append(entries, generic.PointEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	m.entries[e.KidID] = entries

	if e.IdempotencyKey != "" {
		m.idempotency[e.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Entries(_ context.Context, kidID generic.KidID, filter generic.EntryFilter) ([]generic.PointEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.PointEntry
	for _, e := range m.entries[kidID] {
		if filter.Includes(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) SumPoints(_ context.Context, kidID generic.KidID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, e := range m.entries[kidID] {
		total += e.Points
	}
	return total, nil
}

func (m *Memory) CountChoreCompletions(_ context.Context, kidID generic.KidID, choreID generic.ChoreID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.entries[kidID] {
		if e.CountsTowardMastery() && *e.ChoreID == choreID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountDistinctChores(_ context.Context, kidID generic.KidID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[generic.ChoreID]bool)
	for _, e := range m.entries[kidID] {
		if e.CountsTowardMastery() {
			seen[*e.ChoreID] = true
		}
	}
	return len(seen), nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) SaveFamily(_ context.Context, f generic.Family) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.families[f.ID] = f
	return nil
}

func (m *Memory) SaveKid(_ context.Context, k generic.Kid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.families[k.FamilyID]; !ok {
		return &generic.StaleReferenceError{KidID: k.ID, Err: generic.ErrNotFound}
	}
	if prev, ok := m.kids[k.ID]; ok && prev.FamilyID != k.FamilyID {
		return fmt.Errorf("kid %s: %w", k.ID, generic.ErrOwnershipConflict)
	}
	m.kids[k.ID] = k
	return nil
}

func (m *Memory) SaveChore(_ context.Context, c generic.Chore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.families[c.FamilyID]; !ok {
		return &generic.StaleReferenceError{ChoreID: c.ID, Err: generic.ErrNotFound}
	}
	if prev, ok := m.chores[c.ID]; ok && prev.FamilyID != c.FamilyID {
		return fmt.Errorf("chore %s: %w", c.ID, generic.ErrOwnershipConflict)
	}
	m.chores[c.ID] = c
	return nil
}

func (m *Memory) DeleteChore(_ context.Context, id generic.ChoreID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chores[id]; !ok {
		return generic.ErrNotFound
	}
	delete(m.chores, id)
	for k := range m.choreBadges {
		if k.ChoreID == id {
			delete(m.choreBadges, k)
		}
	}
	return nil
}

func (m *Memory) GetFamily(_ context.Context, id generic.FamilyID) (*generic.Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.families[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &f, nil
}

func (m *Memory) GetKid(_ context.Context, id generic.KidID) (*generic.Kid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.kids[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &k, nil
}

func (m *Memory) GetChore(_ context.Context, id generic.ChoreID) (*generic.Chore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chores[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) ListChores(_ context.Context, familyID generic.FamilyID) ([]generic.Chore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.Chore
	for _, c := range m.chores {
		if c.FamilyID == familyID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) KidTimezone(_ context.Context, kidID generic.KidID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.kids[kidID]
	if !ok {
		return "", generic.ErrNotFound
	}
	if k.Timezone != "" {
		return k.Timezone, nil
	}
	return m.families[k.FamilyID].Timezone, nil
}

// =============================================================================
// CHORE BADGES
// =============================================================================

func (m *Memory) IncrementChoreBadge(_ context.Context, key generic.ChoreBadgeKey, at time.Time, level generic.LevelFunc) (generic.ChoreBadgeChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.kids[key.KidID]; !ok {
		return generic.ChoreBadgeChange{}, &generic.StaleReferenceError{KidID: key.KidID, ChoreID: key.ChoreID, Err: generic.ErrNotFound}
	}
	if _, ok := m.chores[key.ChoreID]; !ok {
		return generic.ChoreBadgeChange{}, &generic.StaleReferenceError{KidID: key.KidID, ChoreID: key.ChoreID, Err: generic.ErrNotFound}
	}

	k := badgeKey{KidID: key.KidID, ChoreID: key.ChoreID}
	existing, ok := m.choreBadges[k]
	if !ok {
		created := generic.ChoreBadge{
			FamilyID:      key.FamilyID,
			KidID:         key.KidID,
			ChoreID:       key.ChoreID,
			Count:         1,
			Level:         level(1),
			FirstEarnedAt: at,
			LastLevelUpAt: at,
		}
		m.choreBadges[k] = created
		return generic.ChoreBadgeChange{After: created}, nil
	}

	before := existing
	updated := existing
	updated.Count++
	if next := level(updated.Count); next > updated.Level {
		updated.Level = next
		updated.LastLevelUpAt = at
	}
	m.choreBadges[k] = updated
	return generic.ChoreBadgeChange{Before: &before, After: updated}, nil
}

func (m *Memory) ChoreBadges(_ context.Context, kidID generic.KidID) ([]generic.ChoreBadge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.ChoreBadge
	for k, b := range m.choreBadges {
		if k.KidID == kidID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChoreID < result[j].ChoreID })
	return result, nil
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

func (m *Memory) EarnedBadgeIDs(_ context.Context, kidID generic.KidID) (map[generic.BadgeID]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	earned := make(map[generic.BadgeID]bool, len(m.achievements[kidID]))
	for id := range m.achievements[kidID] {
		earned[id] = true
	}
	return earned, nil
}

func (m *Memory) InsertAchievement(_ context.Context, b generic.AchievementBadge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.kids[b.KidID]; !ok {
		return &generic.StaleReferenceError{KidID: b.KidID, Err: generic.ErrNotFound}
	}
	byBadge := m.achievements[b.KidID]
	if byBadge == nil {
		byBadge = make(map[generic.BadgeID]generic.AchievementBadge)
		m.achievements[b.KidID] = byBadge
	}
	if _, exists := byBadge[b.BadgeID]; exists {
		return generic.ErrAlreadyAwarded
	}
	byBadge[b.BadgeID] = b
	return nil
}

func (m *Memory) Achievements(_ context.Context, kidID generic.KidID) ([]generic.AchievementBadge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.AchievementBadge, 0, len(m.achievements[kidID]))
	for _, b := range m.achievements[kidID] {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EarnedAt.Equal(result[j].EarnedAt) {
			return result[i].BadgeID < result[j].BadgeID
		}
		return result[i].EarnedAt.Before(result[j].EarnedAt)
	})
	return result, nil
}
