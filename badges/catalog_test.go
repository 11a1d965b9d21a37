package badges_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/warp/chore-engine/badges"
	"github.com/warp/chore-engine/generic"
)

func TestDefaultCatalog_StableOrderedIDs(t *testing.T) {
	// Ids are stored in award rows; this list only ever grows at the end.
	want := []generic.BadgeID{
		"first_chore", "points_100", "points_500", "points_1000",
		"streak_3", "streak_7", "streak_30", "big_day",
		"variety_5", "variety_10",
	}

	cat := badges.DefaultCatalog()
	require.Equal(t, len(want), cat.Len())
	for i, def := range cat.Definitions() {
		assert.Equal(t, want[i], def.ID)
		assert.NotEmpty(t, def.Name)
		assert.NotEmpty(t, def.Icon)
		assert.NotNil(t, def.Evaluate)
	}
}

func TestNewCatalog_Rejects(t *testing.T) {
	ok := badges.Definition{ID: "a", Name: "A", Evaluate: fixedRule(true)}

	_, err := badges.NewCatalog(badges.Definition{Name: "nameless", Evaluate: fixedRule(true)})
	assert.Error(t, err, "missing id")

	_, err = badges.NewCatalog(badges.Definition{ID: "b"})
	assert.Error(t, err, "missing rule")

	_, err = badges.NewCatalog(ok, ok)
	assert.Error(t, err, "duplicate id")

	assert.Panics(t, func() { badges.MustCatalog(ok, ok) })
}

func TestCatalog_DefinitionsIsACopy(t *testing.T) {
	cat := badges.DefaultCatalog()
	defs := cat.Definitions()
	defs[0].ID = "tampered"

	first, ok := cat.Lookup(badges.BadgeFirstChore)
	require.True(t, ok)
	assert.Equal(t, badges.BadgeFirstChore, first.ID)
	assert.Equal(t, badges.BadgeFirstChore, cat.Definitions()[0].ID)

	_, ok = cat.Lookup("tampered")
	assert.False(t, ok)
}

func TestDefinition_Localized(t *testing.T) {
	def, ok := badges.DefaultCatalog().Lookup(badges.BadgeStreak7)
	require.True(t, ok)

	en := def.Localized(language.English)
	assert.Equal(t, "Week Warrior", en.Name)

	hebrew := def.Localized(language.Hebrew)
	assert.Equal(t, "לוחם השבוע", hebrew.Name)

	israeli := def.Localized(language.MustParse("he-IL"))
	assert.Equal(t, hebrew, israeli)

	fallback := def.Localized(language.Japanese)
	assert.Equal(t, en, fallback, "unknown languages fall back to English")
}

func TestDefinition_LocalizedIsDeterministic(t *testing.T) {
	// GIVEN: A definition with several translations, built into a catalog
	// WHEN: The same language is resolved many times
	// THEN: Every call returns the same text, also for a bare definition

	def := badges.Definition{
		ID: "many", Name: "Many", Description: "English", Evaluate: fixedRule(false),
		Translations: map[language.Tag]badges.Text{
			language.Hebrew:              {Name: "רבים"},
			language.Arabic:              {Name: "كثير"},
			language.French:              {Name: "Beaucoup"},
			language.BrazilianPortuguese: {Name: "Muitos"},
		},
	}
	built, ok := badges.MustCatalog(def).Lookup("many")
	require.True(t, ok)

	for i := 0; i < 50; i++ {
		assert.Equal(t, "كثير", built.Localized(language.Arabic).Name)
		assert.Equal(t, "Beaucoup", built.Localized(language.MustParse("fr-CA")).Name)
		assert.Equal(t, "Many", built.Localized(language.German).Name)
		assert.Equal(t, "רבים", def.Localized(language.Hebrew).Name)
	}
}
