package badges

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/chore-engine/generic"
)

// =============================================================================
// ENGINE - Best-effort boundary after a committed ledger write
// =============================================================================

// Outcome reports what the badge side effects did. Errors are carried as
// strings for diagnostics; they never mean the points were lost.
type Outcome struct {
	ChoreBadge      *ChoreBadgeResult `json:"chore_badge,omitempty"`
	NewAchievements []NewBadge        `json:"new_achievements"`
	ChoreBadgeErr   string            `json:"chore_badge_error,omitempty"`
	AchievementErr  string            `json:"achievement_error,omitempty"`
}

// Engine chains the updater and the evaluator behind a boundary that logs
// failures and never returns them. Callers invoke it only after the ledger
// entry is committed.
type Engine struct {
	Updater   *Updater
	Evaluator *Evaluator
	Logger    *zap.Logger
}

func NewEngine(updater *Updater, evaluator *Evaluator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Updater: updater, Evaluator: evaluator, Logger: logger}
}

// AfterPointEntry runs chore mastery (for qualifying entries) and then
// achievement evaluation for a committed entry.
func (en *Engine) AfterPointEntry(ctx context.Context, entry generic.PointEntry) Outcome {
	out := Outcome{NewAchievements: []NewBadge{}}
	log := en.Logger.With(
		zap.String("entry_id", string(entry.ID)),
		zap.String("kid_id", string(entry.KidID)),
	)

	if entry.CountsTowardMastery() && en.Updater != nil {
		res, err := en.recordCompletion(ctx, entry)
		switch {
		case err == nil:
			out.ChoreBadge = &res
		case errors.Is(err, generic.ErrStaleReference):
			log.Warn("chore badge skipped, chore no longer exists", zap.String("chore_id", string(*entry.ChoreID)), zap.Error(err))
			out.ChoreBadgeErr = err.Error()
		default:
			log.Error("chore badge update failed", zap.String("chore_id", string(*entry.ChoreID)), zap.Error(err))
			out.ChoreBadgeErr = err.Error()
		}
	}

	if en.Evaluator != nil {
		trigger := &Trigger{Points: entry.Points, ChoreID: entry.ChoreID, Date: entry.Date}
		awarded, err := en.Evaluate(ctx, entry.KidID, entry.FamilyID, trigger)
		out.NewAchievements = awarded
		if err != nil {
			out.AchievementErr = err.Error()
		}
	}
	return out
}

// Evaluate runs the evaluator behind the same boundary. Awards made before a
// failure are still returned.
func (en *Engine) Evaluate(ctx context.Context, kidID generic.KidID, familyID generic.FamilyID, trigger *Trigger) (awarded []NewBadge, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("achievement evaluation panicked: %v", r)
		}
		if err != nil {
			en.Logger.Error("achievement evaluation failed",
				zap.String("kid_id", string(kidID)),
				zap.Bool("retryable", generic.IsRetryable(err)),
				zap.Error(err))
		}
		if awarded == nil {
			awarded = []NewBadge{}
		}
	}()
	return en.Evaluator.EvaluateAndAward(ctx, kidID, familyID, trigger)
}

func (en *Engine) recordCompletion(ctx context.Context, entry generic.PointEntry) (res ChoreBadgeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chore badge update panicked: %v", r)
		}
	}()
	return en.Updater.RecordChoreCompletion(ctx, entry.KidID, *entry.ChoreID, entry.FamilyID)
}
