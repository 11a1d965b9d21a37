/*
Package generic provides the core point-ledger and badge-row model.

PURPOSE:
  This package contains the persistence-facing types shared by every other
  package: the append-only point ledger, the chore catalog boundary, and the
  two durable badge rows. It knows nothing about level thresholds or
  achievement rules; those live in the badges package.

KEY CONCEPTS IN THIS FILE (types.go):
  - PointEntry: An immutable ledger row (points gained or spent by a kid)
  - Chore / Kid / Family: Catalog records the engine references
  - ChoreBadge: Per-(kid, chore) mastery counter
  - AchievementBadge: One row per (kid, badge) ever awarded

DESIGN PRINCIPLES:
  1. Immutability: Point entries are never modified by the badge engine
  2. Type Safety: Distinct ID types prevent mixing kid/chore/family IDs
  3. Storage owns invariants: uniqueness of badge rows is a store contract

USAGE:
  chore := generic.ChoreID("dishes")
  entry := generic.PointEntry{
      FamilyID: "fam-1",
      KidID:    "kid-1",
      ChoreID:  &chore,
      Points:   10,
      Date:     time.Now(),
  }

SEE ALSO:
  - ledger.go: Point ledger writer and reader
  - store.go: Persistence interfaces
  - time.go: Calendar day bucketing
*/
package generic

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type FamilyID string
type KidID string
type ChoreID string
type EntryID string

// BadgeID is the permanent persistence key of an achievement rule.
// Display names may change; ids never do.
type BadgeID string

// =============================================================================
// POINT ENTRY - Append-only ledger row
// =============================================================================

type PointEntry struct {
	ID       EntryID
	FamilyID FamilyID
	KidID    KidID
	ChoreID  *ChoreID // nil for entries not tied to a chore (learning modules, redemptions)
	Points   int      // signed; redemptions are negative
	Date     time.Time
	Reason   string

	// IdempotencyKey rejects duplicate submissions of the same action.
	IdempotencyKey string
	CreatedAt      time.Time
}

// CountsTowardMastery reports whether the entry advances a chore badge.
// Only positive entries tied to a chore qualify.
func (e PointEntry) CountsTowardMastery() bool {
	return e.Points > 0 && e.ChoreID != nil && *e.ChoreID != ""
}

// EntryFilter narrows ledger reads.
type EntryFilter struct {
	From       *time.Time // inclusive
	To         *time.Time // exclusive
	EarnedOnly bool       // points > 0
}

// Includes reports whether e passes the filter.
func (f EntryFilter) Includes(e PointEntry) bool {
	if f.EarnedOnly && e.Points <= 0 {
		return false
	}
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.Date.Before(*f.To) {
		return false
	}
	return true
}

// DayTotal is the sum of a kid's points on one calendar day.
type DayTotal struct {
	Day    Day
	Points int
}

// =============================================================================
// CATALOG - Records owned by other subsystems
// =============================================================================

type Family struct {
	ID        FamilyID
	Name      string
	Timezone  string // IANA zone, e.g. "America/New_York"
	CreatedAt time.Time
}

type Kid struct {
	ID        KidID
	FamilyID  FamilyID
	Name      string
	Timezone  string // empty = use the family's zone
	CreatedAt time.Time
}

type Chore struct {
	ID        ChoreID
	FamilyID  FamilyID
	Name      string
	Icon      string
	Points    int
	CreatedAt time.Time
}

// =============================================================================
// BADGE ROWS
// =============================================================================

// ChoreBadge is the mastery row for one (kid, chore) pair.
//
// INVARIANTS:
//   - Level always equals the level derived from Count.
//   - Level never decreases over the row's lifetime.
//   - LastLevelUpAt only moves when Level increases.
type ChoreBadge struct {
	FamilyID      FamilyID
	KidID         KidID
	ChoreID       ChoreID
	Count         int
	Level         int
	FirstEarnedAt time.Time
	LastLevelUpAt time.Time
}

// ChoreBadgeKey is the unique key of a ChoreBadge row.
type ChoreBadgeKey struct {
	FamilyID FamilyID
	KidID    KidID
	ChoreID  ChoreID
}

// ChoreBadgeChange is the outcome of one atomic increment.
type ChoreBadgeChange struct {
	Before *ChoreBadge // nil when the row was created by this increment
	After  ChoreBadge
}

// LevelFunc derives a level from a cumulative count.
type LevelFunc func(count int) int

// AchievementBadge records that a kid earned a catalog badge.
// At most one row exists per (KidID, BadgeID); rows are never updated.
type AchievementBadge struct {
	ID       string
	FamilyID FamilyID
	KidID    KidID
	BadgeID  BadgeID
	EarnedAt time.Time
	Metadata map[string]any
}
