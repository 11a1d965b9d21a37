/*
handlers.go - HTTP API handlers for the chore badge engine

PURPOSE:
  Exposes the point ledger and the badge engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Catalog:
    POST   /api/families                       Create family
    POST   /api/families/{familyID}/kids       Create kid
    POST   /api/families/{familyID}/chores     Create chore
    GET    /api/families/{familyID}/chores     List chores
    DELETE /api/chores/{choreID}               Delete chore

  Points:
    POST   /api/kids/{kidID}/points            Record points, then run badges

  Badges:
    GET    /api/kids/{kidID}/badges            Enriched chore + achievement badges
    POST   /api/kids/{kidID}/badges/evaluate   Re-run achievement evaluation
    GET    /api/badges/catalog                 Achievement definitions
    GET    /api/levels                         Mastery level table
    GET    /api/health                         Storage liveness

REQUEST FLOW (points):
  1. Parse and validate
  2. Append to the ledger (failure here fails the request)
  3. Run badge side effects behind the engine's best-effort boundary
  4. Serialize entry + celebrations

ERROR HANDLING:
  - 400: Validation errors, stale references
  - 404: Resource not found
  - 409: Duplicate idempotency key, id owned by another family
  - 503: Transient storage errors
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Request auth is owned upstream.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/warp/chore-engine/badges"
	"github.com/warp/chore-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   generic.Store
	Ledger  *generic.Ledger
	Engine  *badges.Engine
	Query   *badges.Query
	Catalog *badges.Catalog
	Logger  *zap.Logger
	Now     func() time.Time

	// Location interprets date-only entry dates when the kid and family
	// carry no zone.
	Location *time.Location
}

// Options tune handler wiring.
type Options struct {
	DefaultLocation *time.Location
	NewBadgeWindow  time.Duration
}

// NewHandler wires the ledger and the badge engine over store.
func NewHandler(store generic.Store, catalog *badges.Catalog, logger *zap.Logger, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := generic.NewLedger(store)

	evaluator := badges.NewEvaluator(catalog, ledger, store, logger)
	evaluator.Zones = store
	evaluator.Default = opts.DefaultLocation

	query := badges.NewQuery(catalog, store, store)
	if opts.NewBadgeWindow > 0 {
		query.NewWindow = opts.NewBadgeWindow
	}

	return &Handler{
		Store:   store,
		Ledger:  ledger,
		Engine:  badges.NewEngine(badges.NewUpdater(store), evaluator, logger),
		Query:   query,
		Catalog: catalog,
		Logger:  logger,
		Now:     time.Now,

		Location: opts.DefaultLocation,
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

func (h *Handler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req CreateFamilyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if _, err := generic.LoadLocation(req.Timezone, time.UTC); err != nil {
		writeStoreError(w, err)
		return
	}

	f := generic.Family{ID: generic.FamilyID(orNewID(req.ID)), Name: req.Name, Timezone: req.Timezone}
	if err := h.Store.SaveFamily(r.Context(), f); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FamilyDTO{ID: string(f.ID), Name: f.Name, Timezone: f.Timezone})
}

func (h *Handler) CreateKid(w http.ResponseWriter, r *http.Request) {
	familyID := generic.FamilyID(chi.URLParam(r, "familyID"))

	var req CreateKidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if _, err := generic.LoadLocation(req.Timezone, time.UTC); err != nil {
		writeStoreError(w, err)
		return
	}
	if _, err := h.Store.GetFamily(r.Context(), familyID); err != nil {
		writeStoreError(w, err)
		return
	}

	k := generic.Kid{ID: generic.KidID(orNewID(req.ID)), FamilyID: familyID, Name: req.Name, Timezone: req.Timezone}
	if err := h.Store.SaveKid(r.Context(), k); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, KidDTO{ID: string(k.ID), FamilyID: string(k.FamilyID), Name: k.Name, Timezone: k.Timezone})
}

func (h *Handler) CreateChore(w http.ResponseWriter, r *http.Request) {
	familyID := generic.FamilyID(chi.URLParam(r, "familyID"))

	var req CreateChoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.Points < 0 {
		writeError(w, http.StatusBadRequest, "points must not be negative", nil)
		return
	}
	if _, err := h.Store.GetFamily(r.Context(), familyID); err != nil {
		writeStoreError(w, err)
		return
	}

	c := generic.Chore{
		ID:       generic.ChoreID(orNewID(req.ID)),
		FamilyID: familyID,
		Name:     req.Name,
		Icon:     req.Icon,
		Points:   req.Points,
	}
	if err := h.Store.SaveChore(r.Context(), c); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ChoreDTO{
		ID:       string(c.ID),
		FamilyID: string(c.FamilyID),
		Name:     c.Name,
		Icon:     c.Icon,
		Points:   c.Points,
	})
}

func (h *Handler) ListChores(w http.ResponseWriter, r *http.Request) {
	familyID := generic.FamilyID(chi.URLParam(r, "familyID"))
	chores, err := h.Store.ListChores(r.Context(), familyID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]ChoreDTO, 0, len(chores))
	for _, c := range chores {
		out = append(out, ChoreDTO{ID: string(c.ID), FamilyID: string(c.FamilyID), Name: c.Name, Icon: c.Icon, Points: c.Points})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteChore(w http.ResponseWriter, r *http.Request) {
	id := generic.ChoreID(chi.URLParam(r, "choreID"))
	if err := h.Store.DeleteChore(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// POINT HANDLERS
// =============================================================================

// RecordPoints appends a ledger entry and then runs badge side effects.
// Only the ledger write can fail the request.
func (h *Handler) RecordPoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kidID := generic.KidID(chi.URLParam(r, "kidID"))

	var req RecordPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kid, err := h.Store.GetKid(ctx, kidID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	entry := generic.PointEntry{
		FamilyID:       kid.FamilyID,
		KidID:          kid.ID,
		Points:         req.Points,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Date:           h.now(),
	}
	if req.Date != "" {
		d, err := h.parseEntryDate(ctx, kid.ID, req.Date)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		entry.Date = d
	}
	if req.ChoreID != "" {
		chore, err := h.Store.GetChore(ctx, generic.ChoreID(req.ChoreID))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if chore.FamilyID != kid.FamilyID {
			writeError(w, http.StatusBadRequest, "chore belongs to another family", nil)
			return
		}
		entry.ChoreID = &chore.ID
		if entry.Points == 0 {
			entry.Points = chore.Points
		}
	}

	committed, err := h.Ledger.Append(ctx, entry)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	outcome := h.Engine.AfterPointEntry(ctx, committed)
	writeJSON(w, http.StatusCreated, RecordPointsResponse{
		Entry:           toPointEntryDTO(committed),
		ChoreBadge:      toChoreBadgeDTO(outcome.ChoreBadge),
		NewAchievements: outcome.NewAchievements,
	})
}

// =============================================================================
// BADGE HANDLERS
// =============================================================================

func (h *Handler) GetKidBadges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kid, err := h.Store.GetKid(ctx, generic.KidID(chi.URLParam(r, "kidID")))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	view, err := h.Query.KidBadges(ctx, kid.ID, resolveTag(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// EvaluateKidBadges re-runs achievement evaluation with no trigger. Used to
// catch up awards missed when an earlier evaluation failed.
func (h *Handler) EvaluateKidBadges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kid, err := h.Store.GetKid(ctx, generic.KidID(chi.URLParam(r, "kidID")))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	awarded, err := h.Engine.Evaluate(ctx, kid.ID, kid.FamilyID, nil)
	if err != nil && len(awarded) == 0 {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{NewAchievements: awarded})
}

func (h *Handler) ListBadgeCatalog(w http.ResponseWriter, r *http.Request) {
	tag := resolveTag(r)
	defs := h.Catalog.Definitions()
	out := make([]BadgeDefinitionDTO, 0, len(defs))
	for _, d := range defs {
		text := d.Localized(tag)
		out = append(out, BadgeDefinitionDTO{
			ID:          string(d.ID),
			Name:        text.Name,
			Description: text.Description,
			Icon:        d.Icon,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, badges.Tiers)
}

// Health reports whether storage answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.Logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now().UTC()
	}
	return h.Now().UTC()
}

// parseEntryDate accepts RFC3339 or a bare YYYY-MM-DD. A bare date is the
// start of that day in the kid's zone.
func (h *Handler) parseEntryDate(ctx context.Context, kidID generic.KidID, s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	day, err := generic.ParseDay(s)
	if err != nil {
		return time.Time{}, &generic.ValidationError{Field: "date", Message: "use RFC3339 or YYYY-MM-DD"}
	}
	tz, err := h.Store.KidTimezone(ctx, kidID)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := generic.LoadLocation(tz, h.Location)
	if err != nil {
		return time.Time{}, err
	}
	return day.Start(loc), nil
}

// LangParam selects a display language.
const LangParam = "lang"

var (
	supportedTags = []language.Tag{language.English, language.Hebrew}
	tagMatcher    = language.NewMatcher(supportedTags)
)

// resolveTag prefers ?lang=, then Accept-Language, then English.
func resolveTag(r *http.Request) language.Tag {
	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, err := language.Parse(v); err == nil {
			_, i, _ := tagMatcher.Match(tag)
			return supportedTags[i]
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, i, _ := tagMatcher.Match(tags...)
			return supportedTags[i]
		}
	}
	return language.English
}

func orNewID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps the generic error taxonomy onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var verr *generic.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Code: "validation", Details: verr.Field})
	case generic.IsClientError(err):
		// Checked before not-found: stale references wrap ErrNotFound.
		msg, code := "Invalid request", "validation"
		if errors.Is(err, generic.ErrStaleReference) {
			msg, code = "Invalid reference", "stale_reference"
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: code, Details: err.Error()})
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "Duplicate request", Code: "duplicate"})
	case errors.Is(err, generic.ErrOwnershipConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "Id already in use by another family", Code: "ownership_conflict"})
	case generic.IsRetryable(err):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Storage temporarily unavailable", Code: "transient", Details: err.Error()})
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
