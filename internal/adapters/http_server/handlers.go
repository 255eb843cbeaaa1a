// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"eatpoint/internal/adapters/observability"
	"eatpoint/internal/app"
	"eatpoint/internal/domain"
	"eatpoint/internal/geo"
)

type Handlers struct {
	L *app.LifecycleService
	D *app.DiscoveryService
	Q *app.QueryService

	// SearchLimit throttles the anonymous search routes; nil disables.
	SearchLimit *rate.Limiter
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/partner/establishments", func(r chi.Router) {
		r.Post("/", h.createEstablishment)
		r.Get("/", h.listPortfolio)
		r.Get("/{id}", h.getOwned)
		r.Patch("/{id}", h.updateEstablishment)
		r.Post("/{id}/submit", h.transition(domain.ActionSubmit, partnerActor))
		r.Post("/{id}/suspend", h.transition(domain.ActionSuspend, partnerActor))
		r.Post("/{id}/unsuspend", h.transition(domain.ActionUnsuspend, partnerActor))
	})

	s.mux.Route("/v1/moderation/establishments", func(r chi.Router) {
		r.Get("/", h.moderationQueue)
		r.Post("/{id}/approve", h.transition(domain.ActionApprove, moderatorActor))
		r.Post("/{id}/reject", h.transition(domain.ActionReject, moderatorActor))
		r.Post("/{id}/suspend", h.transition(domain.ActionSuspend, moderatorActor))
		r.Post("/{id}/unsuspend", h.transition(domain.ActionUnsuspend, moderatorActor))
		r.Post("/{id}/archive", h.transition(domain.ActionArchive, moderatorActor))
	})

	s.mux.Get("/v1/establishments/{id}", h.getPublic)
	var search chi.Router = s.mux
	if h.SearchLimit != nil {
		search = s.mux.With(Throttle(h.SearchLimit))
	}
	search.Get("/v1/establishments/search", h.searchRadius)
	search.Get("/v1/establishments/map", h.searchBounds)

	s.mux.Put("/v1/internal/establishments/{id}/aggregates", h.syncAggregates)
}

// ---- actor extraction (identity is resolved by the gateway) ----

func partnerActor(r *http.Request) (domain.Actor, bool) {
	id := strings.TrimSpace(r.Header.Get("X-Partner-ID"))
	if id == "" {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: id, Role: domain.RolePartner}, true
}

func moderatorActor(r *http.Request) (domain.Actor, bool) {
	id := strings.TrimSpace(r.Header.Get("X-Moderator-ID"))
	if id == "" {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: id, Role: domain.RoleModerator}, true
}

// eitherActor lets moderators use the partner read routes to inspect a
// portfolio. The partner header wins when both are present.
func eitherActor(r *http.Request) (domain.Actor, bool) {
	if a, ok := partnerActor(r); ok {
		return a, true
	}
	return moderatorActor(r)
}

// ---- wire types ----

// establishmentPayload is the create/patch body. Pointers distinguish
// "absent" from zero, so the same shape serves both.
type establishmentPayload struct {
	Name         *string                          `json:"name"`
	Description  *string                          `json:"description"`
	City         *string                          `json:"city"`
	Address      *string                          `json:"address"`
	Latitude     *float64                         `json:"latitude"`
	Longitude    *float64                         `json:"longitude"`
	Categories   *[]string                        `json:"categories"`
	Cuisines     *[]string                        `json:"cuisines"`
	PriceRange   *string                          `json:"price_range"`
	WorkingHours *map[string]domain.HoursInterval `json:"working_hours"`
	SpecialHours *map[string]domain.HoursInterval `json:"special_hours"`
	Attributes   *map[string]bool                 `json:"attributes"`
}

func (p establishmentPayload) createInput() app.CreateInput {
	return app.CreateInput{
		Name:         orZero(p.Name),
		Description:  orZero(p.Description),
		City:         orZero(p.City),
		Address:      orZero(p.Address),
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Categories:   orZero(p.Categories),
		Cuisines:     orZero(p.Cuisines),
		PriceRange:   orZero(p.PriceRange),
		WorkingHours: orZero(p.WorkingHours),
		SpecialHours: orZero(p.SpecialHours),
		Attributes:   orZero(p.Attributes),
	}
}

func (p establishmentPayload) patch() domain.FieldPatch {
	return domain.FieldPatch{
		Name:         p.Name,
		Description:  p.Description,
		City:         p.City,
		Address:      p.Address,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Categories:   p.Categories,
		Cuisines:     p.Cuisines,
		PriceRange:   p.PriceRange,
		WorkingHours: p.WorkingHours,
		SpecialHours: p.SpecialHours,
		Attributes:   p.Attributes,
	}
}

type transitionPayload struct {
	Notes  map[string]string `json:"notes,omitempty"`
	Reason string            `json:"reason,omitempty"`
}

type aggregatesPayload struct {
	ViewCount     int64   `json:"view_count"`
	FavoriteCount int64   `json:"favorite_count"`
	ReviewCount   int64   `json:"review_count"`
	AverageRating float64 `json:"average_rating"`
}

// establishmentResponse is the owner/moderator view of a record.
type establishmentResponse struct {
	ID              string                          `json:"id"`
	PartnerID       string                          `json:"partner_id"`
	Name            string                          `json:"name"`
	Description     string                          `json:"description,omitempty"`
	City            string                          `json:"city,omitempty"`
	Address         string                          `json:"address,omitempty"`
	Latitude        *float64                        `json:"latitude,omitempty"`
	Longitude       *float64                        `json:"longitude,omitempty"`
	Categories      []string                        `json:"categories,omitempty"`
	Cuisines        []string                        `json:"cuisines,omitempty"`
	PriceRange      string                          `json:"price_range,omitempty"`
	WorkingHours    map[string]domain.HoursInterval `json:"working_hours,omitempty"`
	SpecialHours    map[string]domain.HoursInterval `json:"special_hours,omitempty"`
	Attributes      map[string]bool                 `json:"attributes,omitempty"`
	Status          string                          `json:"status"`
	ModerationNotes map[string]string               `json:"moderation_notes,omitempty"`
	NotesHistory    []domain.NotesEntry             `json:"notes_history,omitempty"`
	SuspendReason   string                          `json:"suspend_reason,omitempty"`
	ModeratedBy     string                          `json:"moderated_by,omitempty"`
	ModeratedAt     *time.Time                      `json:"moderated_at,omitempty"`
	Aggregates      domain.Aggregates               `json:"aggregates"`
	CreatedAt       time.Time                       `json:"created_at"`
	UpdatedAt       time.Time                       `json:"updated_at"`
	PublishedAt     *time.Time                      `json:"published_at,omitempty"`
}

func ownedView(e domain.Establishment) establishmentResponse {
	return establishmentResponse{
		ID:              e.ID,
		PartnerID:       e.PartnerID,
		Name:            e.Name,
		Description:     e.Description,
		City:            e.City,
		Address:         e.Address,
		Latitude:        e.Latitude,
		Longitude:       e.Longitude,
		Categories:      e.Categories,
		Cuisines:        e.Cuisines,
		PriceRange:      e.PriceRange,
		WorkingHours:    e.WorkingHours,
		SpecialHours:    e.SpecialHours,
		Attributes:      e.Attributes,
		Status:          string(e.Status),
		ModerationNotes: e.ModerationNotes,
		NotesHistory:    e.NotesHistory,
		SuspendReason:   e.SuspendReason,
		ModeratedBy:     e.ModeratedBy,
		ModeratedAt:     e.ModeratedAt,
		Aggregates:      e.Aggregates,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		PublishedAt:     e.PublishedAt,
	}
}

type listResponse struct {
	Items   []establishmentResponse `json:"items"`
	Total   int                     `json:"total"`
	HasMore bool                    `json:"has_more"`
}

func listView(p domain.EstablishmentsPage) listResponse {
	items := make([]establishmentResponse, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, ownedView(p.Items[i]))
	}
	return listResponse{Items: items, Total: p.Total, HasMore: p.HasMore}
}

// ---- shared plumbing ----

func orZero[T any](p *T) T {
	if p == nil {
		var z T
		return z
	}
	return *p
}

// decodeBody tolerates an empty body; transition endpoints often have
// nothing to say.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == io.EOF {
		return nil
	}
	return err
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError is the one place service errors turn into status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStaleState):
		writeProblem(w, http.StatusConflict, "Stale State", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		writeProblem(w, http.StatusConflict, "Illegal Transition", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "unexpected failure")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// ---- partner surface ----

func (h *Handlers) createEstablishment(w http.ResponseWriter, r *http.Request) {
	actor, ok := partnerActor(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "X-Partner-ID header is required")
		return
	}
	var body establishmentPayload
	if err := decodeBody(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	e, err := h.L.Create(r.Context(), actor, body.createInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ownedView(e))
}

func (h *Handlers) updateEstablishment(w http.ResponseWriter, r *http.Request) {
	actor, ok := partnerActor(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "X-Partner-ID header is required")
		return
	}
	var body establishmentPayload
	if err := decodeBody(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	e, err := h.L.Update(r.Context(), actor, chi.URLParam(r, "id"), body.patch())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ownedView(e))
}

func (h *Handlers) getOwned(w http.ResponseWriter, r *http.Request) {
	actor, ok := eitherActor(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "X-Partner-ID or X-Moderator-ID header is required")
		return
	}
	e, err := h.Q.GetOwned(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ownedView(e))
}

func (h *Handlers) listPortfolio(w http.ResponseWriter, r *http.Request) {
	actor, ok := eitherActor(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "X-Partner-ID or X-Moderator-ID header is required")
		return
	}
	partnerID := actor.ID
	if actor.Role == domain.RoleModerator {
		partnerID = strings.TrimSpace(r.URL.Query().Get("partner_id"))
		if partnerID == "" {
			writeProblem(w, http.StatusBadRequest, "Validation Failed", "partner_id query parameter is required for moderators")
			return
		}
	}
	pg, err := parsePage(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := h.Q.ListByPartner(r.Context(), actor, partnerID, pg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listView(page))
}

// ---- transitions (both surfaces) ----

func (h *Handlers) transition(action domain.Action, auth func(*http.Request) (domain.Actor, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth(r)
		if !ok {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "actor header is required")
			return
		}
		var body transitionPayload
		if err := decodeBody(r, &body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}

		ctx := r.Context()
		id := chi.URLParam(r, "id")
		var (
			e   domain.Establishment
			err error
		)
		switch action {
		case domain.ActionSubmit:
			e, err = h.L.Submit(ctx, actor, id)
		case domain.ActionApprove:
			e, err = h.L.Approve(ctx, actor, id, body.Notes)
		case domain.ActionReject:
			e, err = h.L.Reject(ctx, actor, id, body.Notes)
		case domain.ActionSuspend:
			e, err = h.L.Suspend(ctx, actor, id, body.Reason)
		case domain.ActionUnsuspend:
			e, err = h.L.Unsuspend(ctx, actor, id)
		case domain.ActionArchive:
			e, err = h.L.Archive(ctx, actor, id)
		}
		observability.ObserveTransition(string(action), err)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ownedView(e))
	}
}

// ---- moderation surface ----

func (h *Handlers) moderationQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := moderatorActor(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "X-Moderator-ID header is required")
		return
	}
	pg, err := parsePage(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st := domain.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	page, err := h.Q.ModerationQueue(r.Context(), actor, st, pg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listView(page))
}

// ---- public surface ----

func (h *Handlers) getPublic(w http.ResponseWriter, r *http.Request) {
	v, err := h.Q.GetPublic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	etag, body := calcETagAndBody(v)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write public view body")
	}
}

func (h *Handlers) searchRadius(w http.ResponseWriter, r *http.Request) {
	q, err := parseRadiusQuery(r)
	var page domain.SearchPage
	if err == nil {
		page, err = h.D.SearchByRadius(r.Context(), q)
	}
	observability.ObserveSearch("radius", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) searchBounds(w http.ResponseWriter, r *http.Request) {
	q, err := parseBoundsQuery(r)
	var page domain.SearchPage
	if err == nil {
		page, err = h.D.SearchByBounds(r.Context(), q)
	}
	observability.ObserveSearch("bounds", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ---- internal surface ----

func (h *Handlers) syncAggregates(w http.ResponseWriter, r *http.Request) {
	var body aggregatesPayload
	if err := decodeBody(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	agg := domain.Aggregates{
		ViewCount:     body.ViewCount,
		FavoriteCount: body.FavoriteCount,
		ReviewCount:   body.ReviewCount,
		AverageRating: body.AverageRating,
	}
	if err := h.L.SyncAggregates(r.Context(), chi.URLParam(r, "id"), agg); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- query parsing ----

func parsePage(r *http.Request) (domain.PageQuery, error) {
	var pg domain.PageQuery
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return pg, domain.Validationf("limit must be an integer")
		}
		pg.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return pg, domain.Validationf("offset must be an integer")
		}
		pg.Offset = n
	}
	return pg, nil
}

func floatParam(r *http.Request, name string) (*float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, domain.Validationf("%s must be a number", name)
	}
	return &f, nil
}

func parseFilters(r *http.Request) (domain.FilterOptions, error) {
	var f domain.FilterOptions
	qs := r.URL.Query()
	f.Categories = splitList(qs.Get("categories"))
	f.Cuisines = splitList(qs.Get("cuisines"))
	f.PriceRange = strings.TrimSpace(qs.Get("price_range"))
	if v := qs.Get("min_rating"); v != "" {
		mr, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, domain.Validationf("min_rating must be a number")
		}
		f.MinRating = &mr
	}
	if v := qs.Get("open_now"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return f, domain.Validationf("open_now must be a boolean")
		}
		f.OpenNow = on
	}
	return f, nil
}

func parseRadiusQuery(r *http.Request) (domain.RadiusQuery, error) {
	var q domain.RadiusQuery
	lat, err := floatParam(r, "lat")
	if err != nil {
		return q, err
	}
	lon, err := floatParam(r, "lon")
	if err != nil {
		return q, err
	}
	rad, err := floatParam(r, "radius_km")
	if err != nil {
		return q, err
	}
	q.Lat, q.Lon = lat, lon
	if rad != nil {
		q.RadiusKm = *rad
	}
	if q.Filters, err = parseFilters(r); err != nil {
		return q, err
	}
	q.Page, err = parsePage(r)
	return q, err
}

func parseBoundsQuery(r *http.Request) (domain.BoundsQuery, error) {
	var q domain.BoundsQuery
	var b geo.Bounds
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"min_lat", &b.MinLat},
		{"max_lat", &b.MaxLat},
		{"min_lon", &b.MinLon},
		{"max_lon", &b.MaxLon},
	} {
		v, err := floatParam(r, p.name)
		if err != nil {
			return q, err
		}
		if v == nil {
			return q, domain.Validationf("%s is required", p.name)
		}
		*p.dst = *v
	}
	q.Bounds = b
	var err error
	if q.Filters, err = parseFilters(r); err != nil {
		return q, err
	}
	q.Page, err = parsePage(r)
	return q, err
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
