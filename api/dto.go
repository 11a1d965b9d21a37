/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal row shapes from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers and the ledger, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - badges/query.go: Enriched badge views returned as-is
*/
package api

import (
	"time"

	"github.com/warp/chore-engine/badges"
	"github.com/warp/chore-engine/generic"
)

// =============================================================================
// CATALOG
// =============================================================================

type FamilyDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type CreateFamilyRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type KidDTO struct {
	ID       string `json:"id"`
	FamilyID string `json:"family_id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
}

type CreateKidRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type ChoreDTO struct {
	ID       string `json:"id"`
	FamilyID string `json:"family_id"`
	Name     string `json:"name"`
	Icon     string `json:"icon,omitempty"`
	Points   int    `json:"points"`
}

type CreateChoreRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Points int    `json:"points"`
}

// =============================================================================
// POINTS
// =============================================================================

// RecordPointsRequest appends a ledger entry. Points default to the chore's
// points when a chore is given; Date defaults to now (RFC3339).
type RecordPointsRequest struct {
	ChoreID        string `json:"chore_id,omitempty"`
	Points         int    `json:"points"`
	Date           string `json:"date,omitempty"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type PointEntryDTO struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	KidID     string    `json:"kid_id"`
	ChoreID   *string   `json:"chore_id,omitempty"`
	Points    int       `json:"points"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ChoreBadgeDTO struct {
	ChoreID     string          `json:"chore_id"`
	Count       int             `json:"count"`
	Level       int             `json:"level"`
	LevelName   string          `json:"level_name,omitempty"`
	LeveledUp   bool            `json:"leveled_up"`
	IsFirstTime bool            `json:"is_first_time"`
	Progress    badges.Progress `json:"progress"`
}

// RecordPointsResponse carries the committed entry plus whatever badge side
// effects happened. Badge failures never change the status code.
type RecordPointsResponse struct {
	Entry           PointEntryDTO     `json:"entry"`
	ChoreBadge      *ChoreBadgeDTO    `json:"chore_badge,omitempty"`
	NewAchievements []badges.NewBadge `json:"new_achievements"`
}

type EvaluateResponse struct {
	NewAchievements []badges.NewBadge `json:"new_achievements"`
}

// =============================================================================
// CATALOG METADATA
// =============================================================================

type BadgeDefinitionDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toPointEntryDTO(e generic.PointEntry) PointEntryDTO {
	dto := PointEntryDTO{
		ID:        string(e.ID),
		FamilyID:  string(e.FamilyID),
		KidID:     string(e.KidID),
		Points:    e.Points,
		Date:      e.Date,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
	if e.ChoreID != nil {
		id := string(*e.ChoreID)
		dto.ChoreID = &id
	}
	return dto
}

func toChoreBadgeDTO(res *badges.ChoreBadgeResult) *ChoreBadgeDTO {
	if res == nil {
		return nil
	}
	dto := &ChoreBadgeDTO{
		ChoreID:     string(res.Badge.ChoreID),
		Count:       res.Badge.Count,
		Level:       res.Badge.Level,
		LeveledUp:   res.LeveledUp,
		IsFirstTime: res.IsFirstTime,
		Progress:    badges.ProgressToNext(res.Badge.Count),
	}
	if tier, ok := badges.TierFor(res.Badge.Level); ok {
		dto.LevelName = tier.Name
	}
	return dto
}
