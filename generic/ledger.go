/*
ledger.go - Append-only point ledger

PURPOSE:
  The Ledger is the immutable source of truth for every point a kid earns
  or spends. Badge state is derived from it and never feeds back into it.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. INDEPENDENT: A committed entry stays committed whatever badge side
     effects do afterwards.
  3. IDEMPOTENT: Same idempotency key = same entry (no duplicates)

READER:
  The read half of the ledger answers the aggregate questions achievement
  rules ask: signed totals, per-chore counts, distinct chores and per-day
  sums. Per-day sums bucket by calendar date in a caller-supplied zone,
  never by raw timestamp.

SEE ALSO:
  - store.go: Low-level persistence interface
  - badges/rules.go: Rules reading through LedgerReader
*/
package generic

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER READER - Queries rules are allowed to make
// =============================================================================

// LedgerReader is the read-only view of the point ledger.
type LedgerReader interface {
	TotalPoints(ctx context.Context, kidID KidID) (int, error)
	ChoreCompletions(ctx context.Context, kidID KidID, choreID ChoreID) (int, error)
	DistinctChores(ctx context.Context, kidID KidID) (int, error)

	// DailyTotals sums the kid's earned points per calendar day in loc,
	// ordered by day. Days with no earned points are absent.
	DailyTotals(ctx context.Context, kidID KidID, loc *time.Location) ([]DayTotal, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using LedgerStore
// =============================================================================

type Ledger struct {
	Store LedgerStore
	Now   func() time.Time
}

func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{Store: store, Now: time.Now}
}

// Append validates and persists entry, returning it with ID and CreatedAt set.
func (l *Ledger) Append(ctx context.Context, entry PointEntry) (PointEntry, error) {
	if err := ValidateEntry(entry); err != nil {
		return PointEntry{}, err
	}
	if entry.ID == "" {
		entry.ID = EntryID(uuid.NewString())
	}
	entry.CreatedAt = l.now()
	if err := l.Store.AppendEntry(ctx, entry); err != nil {
		return PointEntry{}, err
	}
	return entry, nil
}

func (l *Ledger) Entries(ctx context.Context, kidID KidID, filter EntryFilter) ([]PointEntry, error) {
	return l.Store.Entries(ctx, kidID, filter)
}

func (l *Ledger) TotalPoints(ctx context.Context, kidID KidID) (int, error) {
	return l.Store.SumPoints(ctx, kidID)
}

func (l *Ledger) ChoreCompletions(ctx context.Context, kidID KidID, choreID ChoreID) (int, error) {
	return l.Store.CountChoreCompletions(ctx, kidID, choreID)
}

func (l *Ledger) DistinctChores(ctx context.Context, kidID KidID) (int, error) {
	return l.Store.CountDistinctChores(ctx, kidID)
}

func (l *Ledger) DailyTotals(ctx context.Context, kidID KidID, loc *time.Location) ([]DayTotal, error) {
	entries, err := l.Store.Entries(ctx, kidID, EntryFilter{EarnedOnly: true})
	if err != nil {
		return nil, err
	}
	return BucketByDay(entries, loc), nil
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}

// BucketByDay sums entries per calendar day of their Date in loc.
func BucketByDay(entries []PointEntry, loc *time.Location) []DayTotal {
	sums := make(map[Day]int)
	for _, e := range entries {
		sums[DayOf(e.Date, loc)] += e.Points
	}
	totals := make([]DayTotal, 0, len(sums))
	for d, p := range sums {
		totals = append(totals, DayTotal{Day: d, Points: p})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Day.Before(totals[j].Day) })
	return totals
}

// ValidateEntry rejects entries that must never reach the store.
func ValidateEntry(e PointEntry) error {
	switch {
	case strings.TrimSpace(string(e.FamilyID)) == "":
		return &ValidationError{Field: "family_id", Message: "required"}
	case strings.TrimSpace(string(e.KidID)) == "":
		return &ValidationError{Field: "kid_id", Message: "required"}
	case e.ChoreID != nil && strings.TrimSpace(string(*e.ChoreID)) == "":
		return &ValidationError{Field: "chore_id", Message: "must not be empty when set"}
	case e.Points == 0:
		return &ValidationError{Field: "points", Message: "must be non-zero"}
	case e.Date.IsZero():
		return &ValidationError{Field: "date", Message: "required"}
	}
	return nil
}
