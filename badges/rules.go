package badges

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/chore-engine/generic"
)

// =============================================================================
// EVALUATION CONTEXT
// =============================================================================

// Trigger is the point entry that caused an evaluation. Nil for catch-up runs.
type Trigger struct {
	Points  int
	ChoreID *generic.ChoreID
	Date    time.Time

	// Location overrides the kid's resolved zone for day bucketing.
	Location *time.Location
}

// EvalContext is everything a rule may look at. Rules must not write.
type EvalContext struct {
	KidID    generic.KidID
	FamilyID generic.FamilyID
	Trigger  *Trigger
	Location *time.Location
	Ledger   generic.LedgerReader
}

// Verdict is a rule's answer. Metadata is persisted with the award.
type Verdict struct {
	Earned   bool
	Metadata map[string]any
}

// Rule is a pure function of ledger state.
type Rule func(ctx context.Context, ec EvalContext) (Verdict, error)

// =============================================================================
// RULE HELPERS
// =============================================================================

// Milestone is earned once the kid's signed point total reaches threshold.
// Redemptions count against the total.
func Milestone(threshold int) Rule {
	return func(ctx context.Context, ec EvalContext) (Verdict, error) {
		total, err := ec.Ledger.TotalPoints(ctx, ec.KidID)
		if err != nil {
			return Verdict{}, fmt.Errorf("total points: %w", err)
		}
		return Verdict{
			Earned: total >= threshold,
			Metadata: map[string]any{
				"total_points": total,
				"threshold":    threshold,
			},
		}, nil
	}
}

// Streak is earned when the kid has days consecutive calendar days, in the
// context's zone, each with at least minPerDay earned points.
func Streak(days, minPerDay int) Rule {
	return func(ctx context.Context, ec EvalContext) (Verdict, error) {
		if days < 1 {
			return Verdict{}, fmt.Errorf("streak length must be positive, got %d", days)
		}
		loc := ec.Location
		if loc == nil {
			loc = time.UTC
		}
		totals, err := ec.Ledger.DailyTotals(ctx, ec.KidID, loc)
		if err != nil {
			return Verdict{}, fmt.Errorf("daily totals: %w", err)
		}
		run, end := LongestRun(totals, minPerDay)
		v := Verdict{
			Earned: run >= days,
			Metadata: map[string]any{
				"longest_streak":     run,
				"required_days":      days,
				"min_points_per_day": minPerDay,
				"timezone":           loc.String(),
			},
		}
		if run > 0 {
			v.Metadata["streak_end"] = end.String()
		}
		return v, nil
	}
}

// Variety is earned once the kid has completed distinct different chores.
func Variety(distinct int) Rule {
	return func(ctx context.Context, ec EvalContext) (Verdict, error) {
		n, err := ec.Ledger.DistinctChores(ctx, ec.KidID)
		if err != nil {
			return Verdict{}, fmt.Errorf("distinct chores: %w", err)
		}
		return Verdict{
			Earned: n >= distinct,
			Metadata: map[string]any{
				"distinct_chores": n,
				"threshold":       distinct,
			},
		}, nil
	}
}

// LongestRun finds the longest run of calendar-adjacent days whose total is at
// least minPerDay. totals must be ordered by day. Returns the run length and
// the last day of the first longest run.
func LongestRun(totals []generic.DayTotal, minPerDay int) (int, generic.Day) {
	var (
		best, run int
		bestEnd   generic.Day
		prev      generic.Day
	)
	for _, t := range totals {
		if t.Points < minPerDay {
			run = 0
			continue
		}
		if run > 0 && prev.Next().Equal(t.Day) {
			run++
		} else {
			run = 1
		}
		prev = t.Day
		if run > best {
			best = run
			bestEnd = t.Day
		}
	}
	return best, bestEnd
}
