package badges_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/warp/chore-engine/badges"
	"github.com/warp/chore-engine/generic"
)

func TestEnrichChoreBadge_IsNewWindow(t *testing.T) {
	leveled := time.Date(2025, time.August, 10, 12, 0, 0, 0, time.UTC)
	row := generic.ChoreBadge{ChoreID: "dishes", Count: 12, Level: 2, FirstEarnedAt: leveled.AddDate(0, 0, -5), LastLevelUpAt: leveled}
	chore := &generic.Chore{ID: "dishes", Name: "Dishes", Icon: "🍽️"}

	fresh := badges.EnrichChoreBadge(row, chore, leveled.Add(23*time.Hour), badges.DefaultNewBadgeWindow)
	assert.True(t, fresh.IsNew)
	assert.Equal(t, "Dishes", fresh.ChoreName)
	assert.Equal(t, "Apprentice", fresh.LevelName)
	assert.Equal(t, 20, fresh.Progress.Percent)

	stale := badges.EnrichChoreBadge(row, chore, leveled.Add(25*time.Hour), badges.DefaultNewBadgeWindow)
	assert.False(t, stale.IsNew)

	orphan := badges.EnrichChoreBadge(row, nil, leveled, time.Hour)
	assert.Equal(t, "dishes", orphan.ChoreName, "missing chore falls back to the id")
}

func TestKidBadges_FullView(t *testing.T) {
	// GIVEN: A kid who completed one chore for 100 points
	// WHEN: Reading badges in Hebrew
	// THEN: One chore badge plus every catalog entry, three of them earned

	env := newTestEnv(t, badges.DefaultCatalog(), "dishes")
	at := time.Date(2025, time.August, 10, 12, 0, 0, 0, time.UTC)
	env.earn(t, "dishes", 100, at)
	env.query.Now = func() time.Time { return at.Add(time.Hour) }

	view, err := env.query.KidBadges(context.Background(), testKid, language.Hebrew)
	require.NoError(t, err)

	require.Len(t, view.ChoreBadges, 1)
	assert.Equal(t, "Chore dishes", view.ChoreBadges[0].ChoreName)
	assert.Equal(t, 1, view.ChoreBadges[0].Count)

	require.Len(t, view.Achievements, badges.DefaultCatalog().Len())
	earned := map[generic.BadgeID]bool{}
	for _, a := range view.Achievements {
		if a.Earned {
			earned[a.BadgeID] = true
			assert.NotNil(t, a.EarnedAt)
		}
	}
	assert.Equal(t, map[generic.BadgeID]bool{
		badges.BadgeFirstChore: true,
		badges.BadgePoints100:  true,
		badges.BadgeBigDay:     true,
	}, earned)
	assert.Equal(t, "צעדים ראשונים", view.Achievements[0].Name)
}

func TestCatalogViews_KeepsRetiredAwards(t *testing.T) {
	cat := badges.MustCatalog(badges.Definition{ID: "current", Name: "Current", Evaluate: fixedRule(false)})
	awards := []generic.AchievementBadge{{BadgeID: "retired", EarnedAt: time.Now()}}

	views := cat.Views(language.English, awards)
	require.Len(t, views, 2)
	assert.Equal(t, generic.BadgeID("current"), views[0].BadgeID)
	assert.False(t, views[0].Earned)
	assert.Equal(t, generic.BadgeID("retired"), views[1].BadgeID)
	assert.True(t, views[1].Earned)
}
