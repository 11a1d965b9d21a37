/*
Package badges implements the badge and achievement engine.

PURPOSE:
  Turns point-ledger activity into two kinds of durable, kid-visible state:
  - Chore badges: per-(kid, chore) mastery that levels up with repetition
  - Achievement badges: one-shot awards for rules over the kid's whole history

COMPONENTS:
  levels.go:    Static level table and progress math
  updater.go:   Atomic chore badge increment
  rules.go:     Rule helpers (milestone, streak, variety)
  catalog.go:   The fixed, ordered achievement catalog
  evaluator.go: Evaluate-and-award orchestration
  engine.go:    Best-effort boundary called after a ledger write
  query.go:     Read path enriching rows for display

SEE ALSO:
  - generic/ledger.go: The ledger these badges are derived from
  - generic/store.go: Storage contracts the engine relies on
*/
package badges

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEVEL TABLE
// =============================================================================

// Tier is one rung of the mastery ladder.
type Tier struct {
	Level     int    `json:"level"`
	Threshold int    `json:"threshold"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
}

// Tiers is ascending by Threshold.
var Tiers = []Tier{
	{Level: 1, Threshold: 1, Name: "Beginner", Icon: "🌱"},
	{Level: 2, Threshold: 10, Name: "Apprentice", Icon: "⭐"},
	{Level: 3, Threshold: 20, Name: "Skilled", Icon: "🌟"},
	{Level: 4, Threshold: 30, Name: "Expert", Icon: "🏅"},
	{Level: 5, Threshold: 40, Name: "Master", Icon: "🏆"},
	{Level: 6, Threshold: 50, Name: "Legend", Icon: "👑"},
}

// MaxLevel is the top tier.
var MaxLevel = Tiers[len(Tiers)-1].Level

// LevelFor returns the highest tier whose threshold is <= count, or 0.
func LevelFor(count int) int {
	level := 0
	for _, t := range Tiers {
		if count < t.Threshold {
			break
		}
		level = t.Level
	}
	return level
}

// TierFor returns the tier for level, or false for level 0 and out of range.
func TierFor(level int) (Tier, bool) {
	if level < 1 || level > len(Tiers) {
		return Tier{}, false
	}
	return Tiers[level-1], true
}

// Progress describes how far a count is toward the next tier.
type Progress struct {
	Current int  `json:"current"`
	Level   int  `json:"level"`
	Next    *int `json:"next"` // nil at the top tier
	Percent int  `json:"percent"`
}

// ProgressToNext computes progress from the current tier's threshold to the
// next one. Landing exactly on a threshold starts the new tier at 0%.
func ProgressToNext(count int) Progress {
	level := LevelFor(count)
	p := Progress{Current: count, Level: level}
	if level >= MaxLevel {
		p.Percent = 100
		return p
	}

	floor := 0
	if level > 0 {
		floor = Tiers[level-1].Threshold
	}
	next := Tiers[level].Threshold
	p.Next = &next

	pct := decimal.NewFromInt(int64(100 * (count - floor))).
		Div(decimal.NewFromInt(int64(next - floor))).
		Round(0).
		IntPart()
	p.Percent = clampPercent(int(pct))
	return p
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
