package badges

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"

	"github.com/warp/chore-engine/generic"
)

// =============================================================================
// ACHIEVEMENT DEFINITIONS
// =============================================================================

// Text is a localized name and description.
type Text struct {
	Name        string
	Description string
}

// Definition is one achievement rule. Definitions are values and never
// change at runtime. ID is the persistence key stored in every award row;
// renaming a badge must never change its ID.
type Definition struct {
	ID          generic.BadgeID
	Name        string
	Description string
	Icon        string

	// Translations are keyed by language; English is Name/Description.
	Translations map[language.Tag]Text

	Evaluate Rule

	locales *locales
}

// locales is the matcher over a definition's languages. English is always
// index 0, the rest are sorted so matching never depends on map order.
type locales struct {
	tags    []language.Tag
	matcher language.Matcher
}

func newLocales(translations map[language.Tag]Text) *locales {
	tags := make([]language.Tag, 0, len(translations)+1)
	for t := range translations {
		if t != language.English {
			tags = append(tags, t)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].String() < tags[j].String() })
	tags = append([]language.Tag{language.English}, tags...)
	return &locales{tags: tags, matcher: language.NewMatcher(tags)}
}

// Localized picks the best translation for tag, falling back to English.
func (d Definition) Localized(tag language.Tag) Text {
	l := d.locales
	if l == nil {
		l = newLocales(d.Translations)
	}
	_, idx, conf := l.matcher.Match(tag)
	if conf == language.No || idx == 0 {
		return Text{Name: d.Name, Description: d.Description}
	}
	return d.Translations[l.tags[idx]]
}

// =============================================================================
// CATALOG - Fixed, ordered list of definitions
// =============================================================================

// Catalog is built once at process start. Order is the evaluation order and
// the order newly earned badges are reported in.
type Catalog struct {
	defs []Definition
	byID map[generic.BadgeID]int
}

// NewCatalog validates and freezes defs.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]Definition, 0, len(defs)),
		byID: make(map[generic.BadgeID]int, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog: definition %q has no id", d.Name)
		}
		if d.Evaluate == nil {
			return nil, fmt.Errorf("catalog: definition %s has no rule", d.ID)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %s", d.ID)
		}
		d.locales = newLocales(d.Translations)
		c.byID[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	return c, nil
}

func MustCatalog(defs ...Definition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Definitions returns the definitions in catalog order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) Lookup(id generic.BadgeID) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

func (c *Catalog) Len() int { return len(c.defs) }

// =============================================================================
// DEFAULT CATALOG
// =============================================================================
// Ids are additive-only. Never rename or reuse one.

const (
	BadgeFirstChore generic.BadgeID = "first_chore"
	BadgePoints100  generic.BadgeID = "points_100"
	BadgePoints500  generic.BadgeID = "points_500"
	BadgePoints1000 generic.BadgeID = "points_1000"
	BadgeStreak3    generic.BadgeID = "streak_3"
	BadgeStreak7    generic.BadgeID = "streak_7"
	BadgeStreak30   generic.BadgeID = "streak_30"
	BadgeBigDay     generic.BadgeID = "big_day"
	BadgeVariety5   generic.BadgeID = "variety_5"
	BadgeVariety10  generic.BadgeID = "variety_10"
)

// streakDailyFloor is the per-day minimum for the streak badges.
const streakDailyFloor = 10

var defaultCatalog = MustCatalog(
	Definition{
		ID: BadgeFirstChore, Name: "First Steps", Icon: "👣",
		Description:  "Complete your very first chore",
		Translations: he("צעדים ראשונים", "השלמת את המטלה הראשונה שלך"),
		Evaluate:     Variety(1),
	},
	Definition{
		ID: BadgePoints100, Name: "Century Club", Icon: "💯",
		Description:  "Earn 100 points",
		Translations: he("מועדון המאה", "צברת 100 נקודות"),
		Evaluate:     Milestone(100),
	},
	Definition{
		ID: BadgePoints500, Name: "High Achiever", Icon: "🚀",
		Description:  "Earn 500 points",
		Translations: he("שואף גבוה", "צברת 500 נקודות"),
		Evaluate:     Milestone(500),
	},
	Definition{
		ID: BadgePoints1000, Name: "Point Master", Icon: "💎",
		Description:  "Earn 1,000 points",
		Translations: he("אלוף הנקודות", "צברת 1,000 נקודות"),
		Evaluate:     Milestone(1000),
	},
	Definition{
		ID: BadgeStreak3, Name: "On a Roll", Icon: "🔥",
		Description:  "Earn at least 10 points a day, 3 days in a row",
		Translations: he("על הגל", "לפחות 10 נקודות ביום, 3 ימים ברצף"),
		Evaluate:     Streak(3, streakDailyFloor),
	},
	Definition{
		ID: BadgeStreak7, Name: "Week Warrior", Icon: "⚔️",
		Description:  "Earn at least 10 points a day, 7 days in a row",
		Translations: he("לוחם השבוע", "לפחות 10 נקודות ביום, 7 ימים ברצף"),
		Evaluate:     Streak(7, streakDailyFloor),
	},
	Definition{
		ID: BadgeStreak30, Name: "Monthly Marvel", Icon: "🗓️",
		Description:  "Earn at least 10 points a day, 30 days in a row",
		Translations: he("פלא החודש", "לפחות 10 נקודות ביום, 30 ימים ברצף"),
		Evaluate:     Streak(30, streakDailyFloor),
	},
	Definition{
		ID: BadgeBigDay, Name: "Big Day", Icon: "☀️",
		Description:  "Earn 50 points in a single day",
		Translations: he("יום גדול", "צברת 50 נקודות ביום אחד"),
		Evaluate:     Streak(1, 50),
	},
	Definition{
		ID: BadgeVariety5, Name: "Jack of All Trades", Icon: "🧰",
		Description:  "Complete 5 different chores",
		Translations: he("איש אשכולות", "השלמת 5 מטלות שונות"),
		Evaluate:     Variety(5),
	},
	Definition{
		ID: BadgeVariety10, Name: "Renaissance Kid", Icon: "🎨",
		Description:  "Complete 10 different chores",
		Translations: he("רב-תחומי", "השלמת 10 מטלות שונות"),
		Evaluate:     Variety(10),
	},
)

// DefaultCatalog returns the production catalog.
func DefaultCatalog() *Catalog { return defaultCatalog }

func he(name, description string) map[language.Tag]Text {
	return map[language.Tag]Text{language.Hebrew: {Name: name, Description: description}}
}
