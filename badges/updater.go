package badges

import (
	"context"
	"strings"
	"time"

	"github.com/warp/chore-engine/generic"
)

// =============================================================================
// CHORE BADGE UPDATER
// =============================================================================

// ChoreBadgeResult is what a single qualifying completion did to the badge.
type ChoreBadgeResult struct {
	Badge       generic.ChoreBadge
	LeveledUp   bool
	IsFirstTime bool
}

// Updater advances chore mastery badges.
//
// The count lives only in the store row. The store performs the increment as
// one atomic read-modify-write on (kid, chore), so concurrent completions
// never lose an update.
type Updater struct {
	Store generic.ChoreBadgeStore
	Now   func() time.Time
}

func NewUpdater(store generic.ChoreBadgeStore) *Updater {
	return &Updater{Store: store, Now: time.Now}
}

// RecordChoreCompletion adds one completion for (kidID, choreID).
// Returns a StaleReferenceError if the chore was deleted concurrently.
func (u *Updater) RecordChoreCompletion(ctx context.Context, kidID generic.KidID, choreID generic.ChoreID, familyID generic.FamilyID) (ChoreBadgeResult, error) {
	if err := validateKey(kidID, choreID, familyID); err != nil {
		return ChoreBadgeResult{}, err
	}

	key := generic.ChoreBadgeKey{FamilyID: familyID, KidID: kidID, ChoreID: choreID}
	change, err := u.Store.IncrementChoreBadge(ctx, key, u.now(), LevelFor)
	if err != nil {
		return ChoreBadgeResult{}, err
	}

	result := ChoreBadgeResult{Badge: change.After, IsFirstTime: change.Before == nil}
	oldLevel := 0
	if change.Before != nil {
		oldLevel = change.Before.Level
	}
	result.LeveledUp = change.After.Level > oldLevel
	return result, nil
}

func (u *Updater) now() time.Time {
	if u.Now == nil {
		return time.Now().UTC()
	}
	return u.Now().UTC()
}

func validateKey(kidID generic.KidID, choreID generic.ChoreID, familyID generic.FamilyID) error {
	switch {
	case strings.TrimSpace(string(kidID)) == "":
		return &generic.ValidationError{Field: "kid_id", Message: "required"}
	case strings.TrimSpace(string(choreID)) == "":
		return &generic.ValidationError{Field: "chore_id", Message: "required"}
	case strings.TrimSpace(string(familyID)) == "":
		return &generic.ValidationError{Field: "family_id", Message: "required"}
	}
	return nil
}
