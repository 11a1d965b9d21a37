package badges

import (
	"context"
	"errors"
	"time"

	"golang.org/x/text/language"

	"github.com/warp/chore-engine/generic"
)

// =============================================================================
// BADGE QUERY - Read path for display
// =============================================================================

// DefaultNewBadgeWindow is how long a level-up is flagged as new.
const DefaultNewBadgeWindow = 24 * time.Hour

type ChoreBadgeView struct {
	ChoreID       generic.ChoreID `json:"chore_id"`
	ChoreName     string          `json:"chore_name"`
	ChoreIcon     string          `json:"chore_icon,omitempty"`
	Count         int             `json:"count"`
	Level         int             `json:"level"`
	LevelName     string          `json:"level_name"`
	LevelIcon     string          `json:"level_icon"`
	Progress      Progress        `json:"progress"`
	FirstEarnedAt time.Time       `json:"first_earned_at"`
	LastLevelUpAt time.Time       `json:"last_level_up_at"`
	IsNew         bool            `json:"is_new"`
}

type AchievementView struct {
	BadgeID     generic.BadgeID `json:"badge_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
	Earned      bool            `json:"earned"`
	EarnedAt    *time.Time      `json:"earned_at,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

type KidBadges struct {
	KidID        generic.KidID     `json:"kid_id"`
	ChoreBadges  []ChoreBadgeView  `json:"chore_badges"`
	Achievements []AchievementView `json:"achievements"`
}

// ChoreLookup resolves chore display data.
type ChoreLookup interface {
	GetChore(ctx context.Context, id generic.ChoreID) (*generic.Chore, error)
}

// BadgeReader is the read half of the badge stores.
type BadgeReader interface {
	ChoreBadges(ctx context.Context, kidID generic.KidID) ([]generic.ChoreBadge, error)
	Achievements(ctx context.Context, kidID generic.KidID) ([]generic.AchievementBadge, error)
}

type Query struct {
	Catalog   *Catalog
	Badges    BadgeReader
	Chores    ChoreLookup
	NewWindow time.Duration
	Now       func() time.Time
}

func NewQuery(catalog *Catalog, badges BadgeReader, chores ChoreLookup) *Query {
	return &Query{
		Catalog:   catalog,
		Badges:    badges,
		Chores:    chores,
		NewWindow: DefaultNewBadgeWindow,
		Now:       time.Now,
	}
}

// KidBadges returns the kid's chore badges and the whole achievement catalog
// marked earned or not, localized for tag.
func (q *Query) KidBadges(ctx context.Context, kidID generic.KidID, tag language.Tag) (KidBadges, error) {
	rows, err := q.Badges.ChoreBadges(ctx, kidID)
	if err != nil {
		return KidBadges{}, err
	}
	awards, err := q.Badges.Achievements(ctx, kidID)
	if err != nil {
		return KidBadges{}, err
	}

	now := time.Now()
	if q.Now != nil {
		now = q.Now()
	}

	out := KidBadges{KidID: kidID, ChoreBadges: make([]ChoreBadgeView, 0, len(rows))}
	for _, row := range rows {
		chore, err := q.Chores.GetChore(ctx, row.ChoreID)
		if err != nil && !errors.Is(err, generic.ErrNotFound) {
			return KidBadges{}, err
		}
		out.ChoreBadges = append(out.ChoreBadges, EnrichChoreBadge(row, chore, now, q.NewWindow))
	}
	out.Achievements = q.Catalog.Views(tag, awards)
	return out, nil
}

// EnrichChoreBadge joins a row with level metadata. chore may be nil.
func EnrichChoreBadge(row generic.ChoreBadge, chore *generic.Chore, now time.Time, window time.Duration) ChoreBadgeView {
	v := ChoreBadgeView{
		ChoreID:       row.ChoreID,
		ChoreName:     string(row.ChoreID),
		Count:         row.Count,
		Level:         row.Level,
		Progress:      ProgressToNext(row.Count),
		FirstEarnedAt: row.FirstEarnedAt,
		LastLevelUpAt: row.LastLevelUpAt,
		IsNew:         !row.LastLevelUpAt.IsZero() && now.Sub(row.LastLevelUpAt) < window,
	}
	if chore != nil {
		v.ChoreName = chore.Name
		v.ChoreIcon = chore.Icon
	}
	if tier, ok := TierFor(row.Level); ok {
		v.LevelName = tier.Name
		v.LevelIcon = tier.Icon
	}
	return v
}

// Views lists every definition in catalog order, merged with the kid's
// awards. Awards for ids the catalog no longer knows are appended last.
func (c *Catalog) Views(tag language.Tag, awards []generic.AchievementBadge) []AchievementView {
	byID := make(map[generic.BadgeID]generic.AchievementBadge, len(awards))
	for _, a := range awards {
		byID[a.BadgeID] = a
	}

	views := make([]AchievementView, 0, len(c.defs))
	for _, def := range c.defs {
		text := def.Localized(tag)
		v := AchievementView{
			BadgeID:     def.ID,
			Name:        text.Name,
			Description: text.Description,
			Icon:        def.Icon,
		}
		if a, ok := byID[def.ID]; ok {
			at := a.EarnedAt
			v.Earned = true
			v.EarnedAt = &at
			v.Metadata = a.Metadata
		}
		views = append(views, v)
	}
	for _, a := range awards {
		if _, known := c.byID[a.BadgeID]; known {
			continue
		}
		at := a.EarnedAt
		views = append(views, AchievementView{
			BadgeID:  a.BadgeID,
			Name:     string(a.BadgeID),
			Earned:   true,
			EarnedAt: &at,
			Metadata: a.Metadata,
		})
	}
	return views
}
