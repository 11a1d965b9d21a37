package badges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/chore-engine/generic"
)

// =============================================================================
// ACHIEVEMENT EVALUATION
// =============================================================================

// NewBadge summarises an award made by one evaluation, for celebration UI.
type NewBadge struct {
	BadgeID  generic.BadgeID `json:"badge_id"`
	Name     string          `json:"name"`
	Icon     string          `json:"icon"`
	EarnedAt time.Time       `json:"earned_at"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// RuleEvaluationError is a single rule failing. It is logged and skipped,
// never returned from EvaluateAndAward.
type RuleEvaluationError struct {
	BadgeID generic.BadgeID
	Err     error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.BadgeID, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error { return e.Err }

// ZoneResolver maps a kid to the zone their calendar days are counted in.
type ZoneResolver interface {
	KidTimezone(ctx context.Context, kidID generic.KidID) (string, error)
}

// Evaluator awards achievement badges.
//
// Per (kid, badge) the only transition is unearned -> earned. The store's
// uniqueness constraint is the at-most-once guarantee; the earned-set read
// only saves work.
type Evaluator struct {
	Catalog *Catalog
	Ledger  generic.LedgerReader
	Store   generic.AchievementStore
	Zones   ZoneResolver   // optional
	Default *time.Location // zone when none resolves; nil = UTC
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewEvaluator(catalog *Catalog, ledger generic.LedgerReader, store generic.AchievementStore, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		Catalog: catalog,
		Ledger:  ledger,
		Store:   store,
		Logger:  logger,
		Now:     time.Now,
	}
}

// EvaluateAndAward evaluates every not-yet-earned rule for the kid and records
// the ones that became true. The result is in catalog order. A failing rule is
// logged and skipped; only storage failures on the earned-set read or an
// insert are returned, together with whatever was awarded before them.
func (e *Evaluator) EvaluateAndAward(ctx context.Context, kidID generic.KidID, familyID generic.FamilyID, trigger *Trigger) ([]NewBadge, error) {
	if kidID == "" {
		return nil, &generic.ValidationError{Field: "kid_id", Message: "required"}
	}
	if familyID == "" {
		return nil, &generic.ValidationError{Field: "family_id", Message: "required"}
	}

	earned, err := e.Store.EarnedBadgeIDs(ctx, kidID)
	if err != nil {
		return nil, fmt.Errorf("load earned badges: %w", err)
	}

	ec := EvalContext{
		KidID:    kidID,
		FamilyID: familyID,
		Trigger:  trigger,
		Location: e.location(ctx, kidID, trigger),
		Ledger:   e.Ledger,
	}
	log := e.logger().With(zap.String("kid_id", string(kidID)), zap.String("family_id", string(familyID)))

	awarded := []NewBadge{}
	for _, def := range e.Catalog.Definitions() {
		if earned[def.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return awarded, err
		}

		verdict, err := evaluate(ctx, def, ec)
		if err != nil {
			log.Warn("achievement rule failed", zap.String("badge_id", string(def.ID)), zap.Error(err))
			continue
		}
		if !verdict.Earned {
			continue
		}

		row := generic.AchievementBadge{
			ID:       uuid.NewString(),
			FamilyID: familyID,
			KidID:    kidID,
			BadgeID:  def.ID,
			EarnedAt: e.now(),
			Metadata: verdict.Metadata,
		}
		if err := e.Store.InsertAchievement(ctx, row); err != nil {
			if errors.Is(err, generic.ErrAlreadyAwarded) {
				log.Debug("achievement already awarded by a concurrent evaluation", zap.String("badge_id", string(def.ID)))
				continue
			}
			return awarded, fmt.Errorf("award %s: %w", def.ID, err)
		}

		log.Info("achievement awarded", zap.String("badge_id", string(def.ID)))
		awarded = append(awarded, NewBadge{
			BadgeID:  def.ID,
			Name:     def.Name,
			Icon:     def.Icon,
			EarnedAt: row.EarnedAt,
			Metadata: row.Metadata,
		})
	}
	return awarded, nil
}

// evaluate runs one rule, turning a panic into a RuleEvaluationError.
func evaluate(ctx context.Context, def Definition, ec EvalContext) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuleEvaluationError{BadgeID: def.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err = def.Evaluate(ctx, ec)
	if err != nil {
		return Verdict{}, &RuleEvaluationError{BadgeID: def.ID, Err: err}
	}
	return v, nil
}

// location resolves the zone used for day bucketing: the trigger's override,
// then the kid's or family's zone, then the default.
func (e *Evaluator) location(ctx context.Context, kidID generic.KidID, trigger *Trigger) *time.Location {
	if trigger != nil && trigger.Location != nil {
		return trigger.Location
	}
	fallback := e.Default
	if fallback == nil {
		fallback = time.UTC
	}
	if e.Zones == nil {
		return fallback
	}
	name, err := e.Zones.KidTimezone(ctx, kidID)
	if err != nil {
		e.logger().Warn("resolve kid timezone", zap.String("kid_id", string(kidID)), zap.Error(err))
		return fallback
	}
	loc, err := generic.LoadLocation(name, fallback)
	if err != nil {
		e.logger().Warn("unknown kid timezone", zap.String("kid_id", string(kidID)), zap.String("timezone", name))
		return fallback
	}
	return loc
}

func (e *Evaluator) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Evaluator) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}
