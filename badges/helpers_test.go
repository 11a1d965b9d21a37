package badges_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/warp/chore-engine/badges"
	"github.com/warp/chore-engine/generic"
	"github.com/warp/chore-engine/generic/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	testFamily generic.FamilyID = "fam-1"
	testKid    generic.KidID    = "kid-1"
)

type testEnv struct {
	store     *store.Memory
	ledger    *generic.Ledger
	updater   *badges.Updater
	evaluator *badges.Evaluator
	engine    *badges.Engine
	query     *badges.Query
}

// newTestEnv wires the engine over a memory store seeded with one family,
// one kid and the given chores.
func newTestEnv(t *testing.T, catalog *badges.Catalog, chores ...generic.ChoreID) *testEnv {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveFamily(ctx, generic.Family{ID: testFamily, Name: "Levi", Timezone: "UTC"}))
	require.NoError(t, mem.SaveKid(ctx, generic.Kid{ID: testKid, FamilyID: testFamily, Name: "Maya"}))
	for _, c := range chores {
		require.NoError(t, mem.SaveChore(ctx, generic.Chore{ID: c, FamilyID: testFamily, Name: "Chore " + string(c), Points: 10}))
	}

	logger := zaptest.NewLogger(t)
	ledger := generic.NewLedger(mem)
	updater := badges.NewUpdater(mem)
	evaluator := badges.NewEvaluator(catalog, ledger, mem, logger)
	evaluator.Zones = mem

	return &testEnv{
		store:     mem,
		ledger:    ledger,
		updater:   updater,
		evaluator: evaluator,
		engine:    badges.NewEngine(updater, evaluator, logger),
		query:     badges.NewQuery(catalog, mem, mem),
	}
}

// earn appends a committed entry and runs the engine on it.
func (e *testEnv) earn(t *testing.T, chore generic.ChoreID, points int, at time.Time) badges.Outcome {
	t.Helper()
	entry := generic.PointEntry{FamilyID: testFamily, KidID: testKid, Points: points, Date: at}
	if chore != "" {
		id := chore
		entry.ChoreID = &id
	}
	committed, err := e.ledger.Append(context.Background(), entry)
	require.NoError(t, err)
	return e.engine.AfterPointEntry(context.Background(), committed)
}

func badgeIDs(awards []badges.NewBadge) []generic.BadgeID {
	ids := make([]generic.BadgeID, 0, len(awards))
	for _, a := range awards {
		ids = append(ids, a.BadgeID)
	}
	return ids
}

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

// fixedRule always answers with earned.
func fixedRule(earned bool) badges.Rule {
	return func(context.Context, badges.EvalContext) (badges.Verdict, error) {
		return badges.Verdict{Earned: earned}, nil
	}
}

// fakeLedger answers reader queries from canned values.
type fakeLedger struct {
	total    int
	distinct int
	daily    []generic.DayTotal
	err      error
}

func (f *fakeLedger) TotalPoints(context.Context, generic.KidID) (int, error) {
	return f.total, f.err
}

func (f *fakeLedger) ChoreCompletions(context.Context, generic.KidID, generic.ChoreID) (int, error) {
	return 0, f.err
}

func (f *fakeLedger) DistinctChores(context.Context, generic.KidID) (int, error) {
	return f.distinct, f.err
}

func (f *fakeLedger) DailyTotals(context.Context, generic.KidID, *time.Location) ([]generic.DayTotal, error) {
	return f.daily, f.err
}

// fakeAchievements lets tests script the award store.
type fakeAchievements struct {
	earned    map[generic.BadgeID]bool
	insertErr func(generic.BadgeID) error
	inserted  []generic.BadgeID
}

func (f *fakeAchievements) EarnedBadgeIDs(context.Context, generic.KidID) (map[generic.BadgeID]bool, error) {
	if f.earned == nil {
		return map[generic.BadgeID]bool{}, nil
	}
	return f.earned, nil
}

func (f *fakeAchievements) InsertAchievement(_ context.Context, b generic.AchievementBadge) error {
	if f.insertErr != nil {
		if err := f.insertErr(b.BadgeID); err != nil {
			return err
		}
	}
	f.inserted = append(f.inserted, b.BadgeID)
	return nil
}

func (f *fakeAchievements) Achievements(context.Context, generic.KidID) ([]generic.AchievementBadge, error) {
	return nil, nil
}
