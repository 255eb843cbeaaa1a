package app_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"eatpoint/internal/app"
	"eatpoint/internal/domain"
	"eatpoint/internal/geo"
)

// ---- fakes ----

// memRepo is an in-memory EstablishmentRepository honoring the same
// guarded-write contract as the real store: a compare-and-set that does
// not match reports false instead of writing.
type memRepo struct {
	byID map[string]domain.Establishment

	insertErr error
	getErr    error
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[string]domain.Establishment{}}
}

func (r *memRepo) add(e domain.Establishment) { r.byID[e.ID] = e }

func (r *memRepo) Insert(ctx context.Context, e domain.Establishment) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	if _, dup := r.byID[e.ID]; dup {
		return fmt.Errorf("duplicate id %s", e.ID)
	}
	r.byID[e.ID] = e
	return nil
}

func (r *memRepo) UpdateFields(ctx context.Context, id, partnerID string, patch domain.FieldPatch) (bool, error) {
	e, ok := r.byID[id]
	if !ok || e.PartnerID != partnerID || !e.Editable() {
		return false, nil
	}
	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.City != nil {
		e.City = *patch.City
	}
	if patch.Address != nil {
		e.Address = *patch.Address
	}
	if patch.Latitude != nil {
		e.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		e.Longitude = patch.Longitude
	}
	if patch.Categories != nil {
		e.Categories = *patch.Categories
	}
	if patch.Cuisines != nil {
		e.Cuisines = *patch.Cuisines
	}
	if patch.PriceRange != nil {
		e.PriceRange = *patch.PriceRange
	}
	if patch.WorkingHours != nil {
		e.WorkingHours = *patch.WorkingHours
	}
	if patch.SpecialHours != nil {
		e.SpecialHours = *patch.SpecialHours
	}
	if patch.Attributes != nil {
		e.Attributes = *patch.Attributes
	}
	e.UpdatedAt = time.Now().UTC()
	r.byID[id] = e
	return true, nil
}

func (r *memRepo) Transition(ctx context.Context, id string, from, to domain.Status, set domain.TransitionSet) (bool, error) {
	e, ok := r.byID[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	if set.SetNotes {
		e.ModerationNotes = set.Notes
	}
	if set.SetHistory {
		e.NotesHistory = set.History
	}
	if set.SetSuspendReason {
		e.SuspendReason = set.SuspendReason
	}
	if set.SetModerator {
		e.ModeratedBy = set.ModeratedBy
		at := set.ModeratedAt
		e.ModeratedAt = &at
	}
	if set.MarkPublished && e.PublishedAt == nil {
		now := time.Now().UTC()
		e.PublishedAt = &now
	}
	e.UpdatedAt = time.Now().UTC()
	r.byID[id] = e
	return true, nil
}

func (r *memRepo) UpdateAggregates(ctx context.Context, id string, agg domain.Aggregates) (bool, error) {
	e, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	e.Aggregates = agg
	r.byID[id] = e
	return true, nil
}

func (r *memRepo) Get(ctx context.Context, id string) (domain.Establishment, error) {
	if r.getErr != nil {
		return domain.Establishment{}, r.getErr
	}
	e, ok := r.byID[id]
	if !ok {
		return domain.Establishment{}, fmt.Errorf("%w: establishment %s", domain.ErrNotFound, id)
	}
	return e, nil
}

func (r *memRepo) ListByPartner(ctx context.Context, partnerID string, pg domain.PageQuery) ([]domain.Establishment, int, error) {
	var all []domain.Establishment
	for _, e := range r.byID {
		if e.PartnerID == partnerID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return pageOf(all, pg), len(all), nil
}

func (r *memRepo) ListByStatus(ctx context.Context, st domain.Status, pg domain.PageQuery) ([]domain.Establishment, int, error) {
	var all []domain.Establishment
	for _, e := range r.byID {
		if e.Status == st {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.Before(all[j].UpdatedAt) })
	return pageOf(all, pg), len(all), nil
}

func (r *memRepo) ActiveInBounds(ctx context.Context, b geo.Bounds) ([]domain.Establishment, error) {
	var out []domain.Establishment
	for _, e := range r.byID {
		if e.Status != domain.StatusActive || !e.HasCoordinates() {
			continue
		}
		if b.Contains(*e.Latitude, *e.Longitude) {
			out = append(out, e)
		}
	}
	return out, nil
}

func pageOf(all []domain.Establishment, pg domain.PageQuery) []domain.Establishment {
	if pg.Offset >= len(all) {
		return nil
	}
	end := pg.Offset + pg.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[pg.Offset:end]
}

type fakeCache struct {
	store map[string]any
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*domain.PublicView); ok {
		*d = v.(domain.PublicView)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

type fakeAudit struct {
	events []domain.AuditEvent
}

func (a *fakeAudit) Record(ctx context.Context, ev domain.AuditEvent) {
	a.events = append(a.events, ev)
}

func (a *fakeAudit) last() domain.AuditEvent {
	if len(a.events) == 0 {
		return domain.AuditEvent{}
	}
	return a.events[len(a.events)-1]
}

// ---- helpers ----

func ptr[T any](v T) *T { return &v }

func draftInput() app.CreateInput {
	return app.CreateInput{
		Name:       "Kamyanitsa",
		City:       "minsk",
		Address:    "vul. Pieramozhcau 9",
		Latitude:   ptr(53.9100),
		Longitude:  ptr(27.5400),
		Categories: []string{"restaurant"},
		Cuisines:   []string{"belarusian"},
		PriceRange: "medium",
		WorkingHours: map[string]domain.HoursInterval{
			"mon": {Open: "12:00", Close: "23:00"},
		},
	}
}
