package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/chore-engine/badges"
	"github.com/warp/chore-engine/generic"
	"github.com/warp/chore-engine/store/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveFamily(ctx, generic.Family{ID: "fam-1", Name: "Katz", Timezone: "Asia/Jerusalem"}))
	require.NoError(t, store.SaveKid(ctx, generic.Kid{ID: "kid-1", FamilyID: "fam-1", Name: "Yoav"}))
	require.NoError(t, store.SaveChore(ctx, generic.Chore{ID: "dishes", FamilyID: "fam-1", Name: "Dishes", Icon: "🍽️", Points: 10}))
	return store
}

var key = generic.ChoreBadgeKey{FamilyID: "fam-1", KidID: "kid-1", ChoreID: "dishes"}

func choreRef(id string) *generic.ChoreID {
	c := generic.ChoreID(id)
	return &c
}

// =============================================================================
// LEDGER
// =============================================================================

func TestAppendEntry_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, time.September, 1, 7, 30, 0, 123456789, time.UTC)

	require.NoError(t, store.AppendEntry(ctx, generic.PointEntry{
		ID: "e-1", FamilyID: "fam-1", KidID: "kid-1", ChoreID: choreRef("dishes"),
		Points: 10, Date: at, Reason: "after dinner", IdempotencyKey: "k-1",
	}))
	require.NoError(t, store.AppendEntry(ctx, generic.PointEntry{
		ID: "e-2", FamilyID: "fam-1", KidID: "kid-1", Points: -4, Date: at.Add(time.Hour),
	}))

	entries, err := store.Entries(ctx, "kid-1", generic.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, at.Equal(entries[0].Date))
	require.NotNil(t, entries[0].ChoreID)
	assert.Equal(t, generic.ChoreID("dishes"), *entries[0].ChoreID)
	assert.Equal(t, "after dinner", entries[0].Reason)
	assert.Nil(t, entries[1].ChoreID)

	earned, err := store.Entries(ctx, "kid-1", generic.EntryFilter{EarnedOnly: true})
	require.NoError(t, err)
	assert.Len(t, earned, 1)

	total, err := store.SumPoints(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestAppendEntry_DuplicateIdempotencyKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := generic.PointEntry{ID: "e-1", FamilyID: "fam-1", KidID: "kid-1", Points: 5, Date: time.Now(), IdempotencyKey: "same"}
	require.NoError(t, store.AppendEntry(ctx, e))

	e.ID = "e-2"
	err := store.AppendEntry(ctx, e)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
}

func TestAppendEntry_UnknownChoreIsStale(t *testing.T) {
	store := newTestStore(t)
	err := store.AppendEntry(context.Background(), generic.PointEntry{
		ID: "e-1", FamilyID: "fam-1", KidID: "kid-1", ChoreID: choreRef("ghost"), Points: 5, Date: time.Now(),
	})
	assert.ErrorIs(t, err, generic.ErrStaleReference)
}

func TestEntries_DateFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendEntry(ctx, generic.PointEntry{
			ID: generic.EntryID(fmt.Sprintf("e-%d", i)), FamilyID: "fam-1", KidID: "kid-1",
			Points: 1, Date: base.AddDate(0, 0, i),
		}))
	}

	from, to := base.AddDate(0, 0, 1), base.AddDate(0, 0, 3)
	entries, err := store.Entries(ctx, "kid-1", generic.EntryFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, entries, 2, "from inclusive, to exclusive")
}

// =============================================================================
// CATALOG
// =============================================================================

func TestKidTimezone_FallsBackToFamily(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tz, err := store.KidTimezone(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jerusalem", tz)

	require.NoError(t, store.SaveKid(ctx, generic.Kid{ID: "kid-1", FamilyID: "fam-1", Name: "Yoav", Timezone: "Europe/Berlin"}))
	tz, err = store.KidTimezone(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", tz)

	_, err = store.KidTimezone(ctx, "nobody")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestSaveKid_UnknownFamilyIsStale(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveKid(context.Background(), generic.Kid{ID: "kid-2", FamilyID: "nope", Name: "X"})
	assert.ErrorIs(t, err, generic.ErrStaleReference)
}

func TestDeleteChore_CascadesBadgesAndKeepsLedger(t *testing.T) {
	// GIVEN: A chore with ledger entries and a mastery row
	// WHEN: The chore is deleted
	// THEN: The mastery row is gone, the ledger row is unchanged

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AppendEntry(ctx, generic.PointEntry{
		ID: "e-1", FamilyID: "fam-1", KidID: "kid-1", ChoreID: choreRef("dishes"), Points: 10, Date: time.Now(),
	}))
	_, err := store.IncrementChoreBadge(ctx, key, time.Now(), badges.LevelFor)
	require.NoError(t, err)

	require.NoError(t, store.DeleteChore(ctx, "dishes"))
	assert.ErrorIs(t, store.DeleteChore(ctx, "dishes"), generic.ErrNotFound)

	rows, err := store.ChoreBadges(ctx, "kid-1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	entries, err := store.Entries(ctx, "kid-1", generic.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ChoreID)
	assert.Equal(t, generic.ChoreID("dishes"), *entries[0].ChoreID)
	assert.Equal(t, 10, entries[0].Points)

	_, err = store.IncrementChoreBadge(ctx, key, time.Now(), badges.LevelFor)
	assert.ErrorIs(t, err, generic.ErrStaleReference)
}

func TestDeleteChore_VarietyKeepsCountingDeletedChore(t *testing.T) {
	// GIVEN: Ten distinct chores completed, then one of them deleted
	// WHEN: Achievements are evaluated
	// THEN: variety_10 is awarded and the distinct count stays at ten

	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("c%d", i)
		require.NoError(t, store.SaveChore(ctx, generic.Chore{ID: generic.ChoreID(id), FamilyID: "fam-1", Name: id, Points: 1}))
		require.NoError(t, store.AppendEntry(ctx, generic.PointEntry{
			ID: generic.EntryID("e-" + id), FamilyID: "fam-1", KidID: "kid-1", ChoreID: choreRef(id), Points: 1, Date: time.Now(),
		}))
	}
	require.NoError(t, store.DeleteChore(ctx, "c0"))

	distinct, err := store.CountDistinctChores(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 10, distinct)

	ev := badges.NewEvaluator(badges.DefaultCatalog(), generic.NewLedger(store), store, zap.NewNop())
	ev.Zones = store
	awarded, err := ev.EvaluateAndAward(ctx, "kid-1", "fam-1", nil)
	require.NoError(t, err)

	ids := make([]generic.BadgeID, 0, len(awarded))
	for _, b := range awarded {
		ids = append(ids, b.BadgeID)
	}
	assert.Contains(t, ids, badges.BadgeVariety10)
}

func TestSaveChore_OtherFamilyCannotOverwrite(t *testing.T) {
	// GIVEN: Chore "dishes" owned by fam-1
	// WHEN: fam-2 saves a chore with the same id
	// THEN: The save is rejected and fam-1's chore is unchanged

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveFamily(ctx, generic.Family{ID: "fam-2", Name: "Cohen", Timezone: "UTC"}))

	err := store.SaveChore(ctx, generic.Chore{ID: "dishes", FamilyID: "fam-2", Name: "Hijacked", Points: 99})
	assert.ErrorIs(t, err, generic.ErrOwnershipConflict)

	chore, err := store.GetChore(ctx, "dishes")
	require.NoError(t, err)
	assert.Equal(t, generic.FamilyID("fam-1"), chore.FamilyID)
	assert.Equal(t, "Dishes", chore.Name)
	assert.Equal(t, 10, chore.Points)

	require.NoError(t, store.SaveChore(ctx, generic.Chore{ID: "dishes", FamilyID: "fam-1", Name: "Dishes", Icon: "🍽️", Points: 15}),
		"the owner can still update")
}

func TestSaveKid_OtherFamilyCannotOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveFamily(ctx, generic.Family{ID: "fam-2", Name: "Cohen", Timezone: "UTC"}))

	err := store.SaveKid(ctx, generic.Kid{ID: "kid-1", FamilyID: "fam-2", Name: "Other"})
	assert.ErrorIs(t, err, generic.ErrOwnershipConflict)

	kid, err := store.GetKid(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, generic.FamilyID("fam-1"), kid.FamilyID)
	assert.Equal(t, "Yoav", kid.Name)
}

// =============================================================================
// CHORE BADGES
// =============================================================================

func TestIncrementChoreBadge_CreateThenLevelUp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC)

	first, err := store.IncrementChoreBadge(ctx, key, start, badges.LevelFor)
	require.NoError(t, err)
	assert.Nil(t, first.Before)
	assert.Equal(t, 1, first.After.Count)
	assert.Equal(t, 1, first.After.Level)
	assert.True(t, start.Equal(first.After.FirstEarnedAt))

	var change generic.ChoreBadgeChange
	for i := 2; i <= 10; i++ {
		change, err = store.IncrementChoreBadge(ctx, key, start.Add(time.Duration(i)*time.Hour), badges.LevelFor)
		require.NoError(t, err)
		if i < 10 {
			assert.True(t, start.Equal(change.After.LastLevelUpAt), "no level-up at %d", i)
		}
	}
	require.NotNil(t, change.Before)
	assert.Equal(t, 9, change.Before.Count)
	assert.Equal(t, 1, change.Before.Level)
	assert.Equal(t, 10, change.After.Count)
	assert.Equal(t, 2, change.After.Level)
	assert.True(t, start.Add(10*time.Hour).Equal(change.After.LastLevelUpAt))

	rows, err := store.ChoreBadges(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].Count)
	assert.Equal(t, 2, rows[0].Level)
	assert.True(t, start.Equal(rows[0].FirstEarnedAt))
}

func TestIncrementChoreBadge_ConcurrentNoLostUpdates(t *testing.T) {
	// GIVEN: N simultaneous completions of the same chore
	// THEN: The count is exactly N

	store := newTestStore(t)
	ctx := context.Background()
	const n = 25

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := store.IncrementChoreBadge(ctx, key, time.Now(), badges.LevelFor)
			return err
		})
	}
	require.NoError(t, g.Wait())

	rows, err := store.ChoreBadges(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, n, rows[0].Count)
	assert.Equal(t, badges.LevelFor(n), rows[0].Level)
}

func TestIncrementChoreBadge_TwoSimultaneousAcrossThreshold(t *testing.T) {
	// GIVEN: count 9
	// WHEN: Two completions race
	// THEN: count is 11 and lastLevelUpAt was set by exactly one of them

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 9; i++ {
		_, err := store.IncrementChoreBadge(ctx, key, base, badges.LevelFor)
		require.NoError(t, err)
	}

	stamps := []time.Time{base.Add(time.Hour), base.Add(2 * time.Hour)}
	changes := make([]generic.ChoreBadgeChange, len(stamps))
	var g errgroup.Group
	for i, at := range stamps {
		i, at := i, at
		g.Go(func() error {
			c, err := store.IncrementChoreBadge(ctx, key, at, badges.LevelFor)
			changes[i] = c
			return err
		})
	}
	require.NoError(t, g.Wait())

	leveled := 0
	var levelStamp time.Time
	for i, c := range changes {
		if c.After.Level > c.Before.Level {
			leveled++
			levelStamp = stamps[i]
		}
	}
	assert.Equal(t, 1, leveled)

	rows, err := store.ChoreBadges(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 11, rows[0].Count)
	assert.True(t, levelStamp.Equal(rows[0].LastLevelUpAt))
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

func TestInsertAchievement_AtMostOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	award := generic.AchievementBadge{
		ID: "a-1", FamilyID: "fam-1", KidID: "kid-1", BadgeID: "streak_7",
		EarnedAt: time.Date(2025, time.October, 2, 9, 0, 0, 0, time.UTC),
		Metadata: map[string]any{"longest_streak": 7, "timezone": "Asia/Jerusalem"},
	}
	require.NoError(t, store.InsertAchievement(ctx, award))

	award.ID = "a-2"
	assert.ErrorIs(t, store.InsertAchievement(ctx, award), generic.ErrAlreadyAwarded)

	rows, err := store.Achievements(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a-1", rows[0].ID)
	assert.Equal(t, float64(7), rows[0].Metadata["longest_streak"], "JSON numbers decode as float64")
	assert.Equal(t, "Asia/Jerusalem", rows[0].Metadata["timezone"])

	earned, err := store.EarnedBadgeIDs(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, map[generic.BadgeID]bool{"streak_7": true}, earned)
}

func TestInsertAchievement_UnknownKidIsStale(t *testing.T) {
	store := newTestStore(t)
	err := store.InsertAchievement(context.Background(), generic.AchievementBadge{
		ID: "a-1", FamilyID: "fam-1", KidID: "ghost", BadgeID: "points_100", EarnedAt: time.Now(),
	})
	assert.ErrorIs(t, err, generic.ErrStaleReference)
}

func TestEvaluateAndAward_ConcurrentEvaluationsAwardOnce(t *testing.T) {
	// GIVEN: A kid past 100 points
	// WHEN: Several evaluations run at once
	// THEN: Exactly one row per earned badge, and it is reported once overall

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AppendEntry(ctx, generic.PointEntry{
		ID: "e-1", FamilyID: "fam-1", KidID: "kid-1", Points: 150, Date: time.Now(),
	}))

	ev := badges.NewEvaluator(badges.DefaultCatalog(), generic.NewLedger(store), store, zap.NewNop())
	ev.Zones = store

	const workers = 8
	results := make([][]badges.NewBadge, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			out, err := ev.EvaluateAndAward(ctx, "kid-1", "fam-1", nil)
			results[i] = out
			return err
		})
	}
	require.NoError(t, g.Wait())

	reported := map[generic.BadgeID]int{}
	for _, r := range results {
		for _, b := range r {
			reported[b.BadgeID]++
		}
	}
	assert.Equal(t, map[generic.BadgeID]int{badges.BadgePoints100: 1, badges.BadgeBigDay: 1}, reported)

	rows, err := store.Achievements(ctx, "kid-1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
