/*
store.go - Persistence interfaces for the ledger, catalog and badge rows

PURPOSE:
  Defines the interface between the engine and the database. The engine
  assumes a durable relational store with transactions and uniqueness
  constraints; everything it needs from that store is listed here.

KEY INTERFACES:
  LedgerStore:      Append-only point entries plus the aggregate reads rules need
  CatalogStore:     Families, kids and chores (owned by other subsystems)
  ChoreBadgeStore:  Atomic per-(kid, chore) increment
  AchievementStore: Insert-or-conflict on (kid, badge)

CONCURRENCY CONTRACT:
  - IncrementChoreBadge is a single atomic read-modify-write on the
    (kid, chore) key. Concurrent callers never lose an increment.
  - InsertAchievement relies on a uniqueness constraint, not on a prior
    read. The loser of a race gets ErrAlreadyAwarded.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite store
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level ledger using LedgerStore
  - errors.go: Errors returned by implementations
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// LEDGER STORE - Append-only point entries
// =============================================================================

// LedgerStore persists point entries.
// IMPORTANT: append-only. No Update, no Delete.
type LedgerStore interface {
	// AppendEntry persists an entry. Returns ErrDuplicateIdempotencyKey if the
	// entry's key was already used.
	AppendEntry(ctx context.Context, entry PointEntry) error

	// Entries returns the kid's entries matching filter, ordered by Date.
	Entries(ctx context.Context, kidID KidID, filter EntryFilter) ([]PointEntry, error)

	// SumPoints returns the signed total of every entry for the kid.
	SumPoints(ctx context.Context, kidID KidID) (int, error)

	// CountChoreCompletions counts positive entries for one chore.
	CountChoreCompletions(ctx context.Context, kidID KidID, choreID ChoreID) (int, error)

	// CountDistinctChores counts distinct chore ids among positive entries.
	CountDistinctChores(ctx context.Context, kidID KidID) (int, error)
}

// =============================================================================
// CATALOG STORE - Boundary records
// =============================================================================

type CatalogStore interface {
	SaveFamily(ctx context.Context, f Family) error
	SaveKid(ctx context.Context, k Kid) error
	SaveChore(ctx context.Context, c Chore) error

	// DeleteChore removes the chore with its ChoreBadge rows. Ledger rows keep
	// their points but lose the chore reference.
	DeleteChore(ctx context.Context, id ChoreID) error

	GetFamily(ctx context.Context, id FamilyID) (*Family, error)
	GetKid(ctx context.Context, id KidID) (*Kid, error)
	GetChore(ctx context.Context, id ChoreID) (*Chore, error)
	ListChores(ctx context.Context, familyID FamilyID) ([]Chore, error)

	// KidTimezone returns the kid's zone name, else the family's, else "".
	KidTimezone(ctx context.Context, kidID KidID) (string, error)
}

// =============================================================================
// BADGE STORES
// =============================================================================

type ChoreBadgeStore interface {
	// IncrementChoreBadge atomically adds one completion to the row for key,
	// creating it when absent, and sets its level with level(newCount).
	// LastLevelUpAt is written only on create or when the level rises.
	// Returns a StaleReferenceError if the chore or kid no longer exists.
	IncrementChoreBadge(ctx context.Context, key ChoreBadgeKey, at time.Time, level LevelFunc) (ChoreBadgeChange, error)

	// ChoreBadges returns every chore badge of the kid.
	ChoreBadges(ctx context.Context, kidID KidID) ([]ChoreBadge, error)
}

type AchievementStore interface {
	// EarnedBadgeIDs returns the set of badges already awarded to the kid.
	EarnedBadgeIDs(ctx context.Context, kidID KidID) (map[BadgeID]bool, error)

	// InsertAchievement records an award. Returns ErrAlreadyAwarded if the
	// (kid, badge) row exists.
	InsertAchievement(ctx context.Context, badge AchievementBadge) error

	// Achievements returns the kid's awards ordered by EarnedAt.
	Achievements(ctx context.Context, kidID KidID) ([]AchievementBadge, error)
}

// Store is everything the engine and API need from persistence.
type Store interface {
	LedgerStore
	CatalogStore
	ChoreBadgeStore
	AchievementStore
}
