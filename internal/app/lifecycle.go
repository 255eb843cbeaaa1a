package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"eatpoint/internal/catalog"
	"eatpoint/internal/domain"
)

// LifecycleService owns every write to an establishment: creation,
// partner edits and the status transitions. All status writes go through
// a compare-and-set in the repository; a lost race surfaces as
// ErrStaleState and is never retried here.
type LifecycleService struct {
	repo  domain.EstablishmentRepository
	audit domain.AuditSink
	cache domain.Cache
	cat   *catalog.Catalog
}

func NewLifecycleService(r domain.EstablishmentRepository, a domain.AuditSink, c domain.Cache, cat *catalog.Catalog) *LifecycleService {
	return &LifecycleService{repo: r, audit: a, cache: c, cat: cat}
}

// CreateInput carries the partner-supplied fields of a new draft. Only
// name, categories and cuisines are required up front; the rest may be
// filled in any time before submission.
type CreateInput struct {
	Name         string
	Description  string
	City         string
	Address      string
	Latitude     *float64
	Longitude    *float64
	Categories   []string
	Cuisines     []string
	PriceRange   string
	WorkingHours map[string]domain.HoursInterval
	SpecialHours map[string]domain.HoursInterval
	Attributes   map[string]bool
}

func (s *LifecycleService) Create(ctx context.Context, actor domain.Actor, in CreateInput) (domain.Establishment, error) {
	if actor.Role != domain.RolePartner || actor.ID == "" {
		return domain.Establishment{}, domain.Forbiddenf("only a partner can create establishments")
	}

	now := time.Now().UTC()
	e := domain.Establishment{
		ID:        uuid.NewString(),
		PartnerID: actor.ID,
		Status:    domain.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.fillValidated(&e, in); err != nil {
		return domain.Establishment{}, err
	}

	if err := s.repo.Insert(ctx, e); err != nil {
		return domain.Establishment{}, fmt.Errorf("create establishment: %w", err)
	}
	s.recordAudit(ctx, actor, domain.ActionCreate, e.ID, nil, &e)
	return e, nil
}

func (s *LifecycleService) fillValidated(e *domain.Establishment, in CreateInput) error {
	if err := domain.CheckName(in.Name); err != nil {
		return err
	}
	e.Name = strings.TrimSpace(in.Name)

	if err := domain.CheckDescription(in.Description); err != nil {
		return err
	}
	e.Description = in.Description

	if in.City != "" {
		city := catalog.Canonical(in.City)
		if !s.cat.ValidCity(city) {
			return domain.Validationf("unknown city %q", in.City)
		}
		e.City = city
	}

	if in.Address != "" {
		if err := domain.CheckAddress(in.Address); err != nil {
			return err
		}
		e.Address = strings.TrimSpace(in.Address)
	}

	if (in.Latitude == nil) != (in.Longitude == nil) {
		return domain.Validationf("latitude and longitude must be provided together")
	}
	if in.Latitude != nil {
		if err := domain.CheckCoordinates(*in.Latitude, *in.Longitude); err != nil {
			return err
		}
		e.Latitude, e.Longitude = in.Latitude, in.Longitude
	}

	cats, err := s.cat.NormalizeCategories(in.Categories)
	if err != nil {
		return domain.Validationf("%v", err)
	}
	if len(cats) < domain.MinCategories || len(cats) > domain.MaxCategories {
		return domain.Validationf("categories must list %d-%d values", domain.MinCategories, domain.MaxCategories)
	}
	e.Categories = cats

	cuis, err := s.cat.NormalizeCuisines(in.Cuisines)
	if err != nil {
		return domain.Validationf("%v", err)
	}
	if len(cuis) < domain.MinCuisines || len(cuis) > domain.MaxCuisines {
		return domain.Validationf("cuisines must list %d-%d values", domain.MinCuisines, domain.MaxCuisines)
	}
	e.Cuisines = cuis

	if in.PriceRange != "" {
		pr := catalog.Canonical(in.PriceRange)
		if !s.cat.ValidPriceRange(pr) {
			return domain.Validationf("unknown price range %q", in.PriceRange)
		}
		e.PriceRange = pr
	}

	if err := domain.CheckWorkingHours(in.WorkingHours); err != nil {
		return err
	}
	e.WorkingHours = in.WorkingHours

	if err := domain.CheckSpecialHours(in.SpecialHours); err != nil {
		return err
	}
	e.SpecialHours = in.SpecialHours

	if err := domain.CheckAttributes(in.Attributes); err != nil {
		return err
	}
	e.Attributes = in.Attributes
	return nil
}

// Update applies a partial edit to a draft or rejected listing. The
// repository re-checks ownership and editability inside the UPDATE
// guard, so a concurrent transition loses cleanly as ErrStaleState.
func (s *LifecycleService) Update(ctx context.Context, actor domain.Actor, id string, patch domain.FieldPatch) (domain.Establishment, error) {
	if actor.Role != domain.RolePartner || actor.ID == "" {
		return domain.Establishment{}, domain.Forbiddenf("only the owning partner can edit establishments")
	}
	if patch.Empty() {
		return domain.Establishment{}, domain.Validationf("update carries no fields")
	}

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Establishment{}, err
	}
	if !cur.OwnedBy(actor.ID) {
		return domain.Establishment{}, domain.Forbiddenf("caller does not own this establishment")
	}
	if !cur.Editable() {
		return domain.Establishment{}, fmt.Errorf("%w: fields are frozen in status %q", domain.ErrIllegalTransition, cur.Status)
	}
	if err := s.validatePatch(&cur, &patch); err != nil {
		return domain.Establishment{}, err
	}

	ok, err := s.repo.UpdateFields(ctx, id, actor.ID, patch)
	if err != nil {
		return domain.Establishment{}, fmt.Errorf("update establishment: %w", err)
	}
	if !ok {
		return domain.Establishment{}, fmt.Errorf("%w: establishment %s changed while editing", domain.ErrStaleState, id)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Establishment{}, err
	}
	s.recordAudit(ctx, actor, domain.ActionUpdate, id, &cur, &updated)
	s.invalidate(ctx, id)
	return updated, nil
}

// validatePatch checks each carried field and canonicalizes values in
// place so the repository always writes catalog-form data.
func (s *LifecycleService) validatePatch(cur *domain.Establishment, patch *domain.FieldPatch) error {
	if patch.Name != nil {
		if err := domain.CheckName(*patch.Name); err != nil {
			return err
		}
		*patch.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		if err := domain.CheckDescription(*patch.Description); err != nil {
			return err
		}
	}
	if patch.City != nil {
		city := catalog.Canonical(*patch.City)
		if !s.cat.ValidCity(city) {
			return domain.Validationf("unknown city %q", *patch.City)
		}
		*patch.City = city
	}
	if patch.Address != nil {
		if err := domain.CheckAddress(*patch.Address); err != nil {
			return err
		}
		*patch.Address = strings.TrimSpace(*patch.Address)
	}

	// The coordinate pair rule holds on the merged state, so a patch may
	// move one axis of an already located listing.
	lat, lon := cur.Latitude, cur.Longitude
	if patch.Latitude != nil {
		lat = patch.Latitude
	}
	if patch.Longitude != nil {
		lon = patch.Longitude
	}
	if (lat == nil) != (lon == nil) {
		return domain.Validationf("latitude and longitude must be provided together")
	}
	if lat != nil {
		if err := domain.CheckCoordinates(*lat, *lon); err != nil {
			return err
		}
	}

	if patch.Categories != nil {
		cats, err := s.cat.NormalizeCategories(*patch.Categories)
		if err != nil {
			return domain.Validationf("%v", err)
		}
		if len(cats) < domain.MinCategories || len(cats) > domain.MaxCategories {
			return domain.Validationf("categories must list %d-%d values", domain.MinCategories, domain.MaxCategories)
		}
		*patch.Categories = cats
	}
	if patch.Cuisines != nil {
		cuis, err := s.cat.NormalizeCuisines(*patch.Cuisines)
		if err != nil {
			return domain.Validationf("%v", err)
		}
		if len(cuis) < domain.MinCuisines || len(cuis) > domain.MaxCuisines {
			return domain.Validationf("cuisines must list %d-%d values", domain.MinCuisines, domain.MaxCuisines)
		}
		*patch.Cuisines = cuis
	}
	if patch.PriceRange != nil {
		pr := catalog.Canonical(*patch.PriceRange)
		if !s.cat.ValidPriceRange(pr) {
			return domain.Validationf("unknown price range %q", *patch.PriceRange)
		}
		*patch.PriceRange = pr
	}
	if patch.WorkingHours != nil {
		if err := domain.CheckWorkingHours(*patch.WorkingHours); err != nil {
			return err
		}
	}
	if patch.SpecialHours != nil {
		if err := domain.CheckSpecialHours(*patch.SpecialHours); err != nil {
			return err
		}
	}
	if patch.Attributes != nil {
		if err := domain.CheckAttributes(*patch.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func (s *LifecycleService) Submit(ctx context.Context, actor domain.Actor, id string) (domain.Establishment, error) {
	return s.transition(ctx, id, domain.TransitionRequest{Action: domain.ActionSubmit, Actor: actor})
}

func (s *LifecycleService) Approve(ctx context.Context, actor domain.Actor, id string, notes map[string]string) (domain.Establishment, error) {
	return s.transition(ctx, id, domain.TransitionRequest{Action: domain.ActionApprove, Actor: actor, Notes: notes})
}

func (s *LifecycleService) Reject(ctx context.Context, actor domain.Actor, id string, notes map[string]string) (domain.Establishment, error) {
	return s.transition(ctx, id, domain.TransitionRequest{Action: domain.ActionReject, Actor: actor, Notes: notes})
}

func (s *LifecycleService) Suspend(ctx context.Context, actor domain.Actor, id, reason string) (domain.Establishment, error) {
	return s.transition(ctx, id, domain.TransitionRequest{Action: domain.ActionSuspend, Actor: actor, Reason: reason})
}

func (s *LifecycleService) Unsuspend(ctx context.Context, actor domain.Actor, id string) (domain.Establishment, error) {
	return s.transition(ctx, id, domain.TransitionRequest{Action: domain.ActionUnsuspend, Actor: actor})
}

func (s *LifecycleService) Archive(ctx context.Context, actor domain.Actor, id string) (domain.Establishment, error) {
	return s.transition(ctx, id, domain.TransitionRequest{Action: domain.ActionArchive, Actor: actor})
}

func (s *LifecycleService) transition(ctx context.Context, id string, req domain.TransitionRequest) (domain.Establishment, error) {
	if req.Notes != nil {
		if err := domain.CheckNotes(req.Notes); err != nil {
			return domain.Establishment{}, err
		}
	}
	if len(req.Reason) > domain.MaxSuspendReason {
		return domain.Establishment{}, domain.Validationf("suspend reason exceeds %d characters", domain.MaxSuspendReason)
	}

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Establishment{}, err
	}
	target, err := domain.PlanTransition(&cur, req)
	if err != nil {
		return domain.Establishment{}, err
	}

	ok, err := s.repo.Transition(ctx, id, cur.Status, target, buildTransitionSet(&cur, req))
	if err != nil {
		return domain.Establishment{}, fmt.Errorf("%s establishment: %w", req.Action, err)
	}
	if !ok {
		return domain.Establishment{}, fmt.Errorf("%w: establishment %s left status %q during %s",
			domain.ErrStaleState, id, cur.Status, req.Action)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Establishment{}, err
	}
	s.recordAudit(ctx, req.Actor, req.Action, id, &cur, &updated)
	s.invalidate(ctx, id)
	return updated, nil
}

// buildTransitionSet derives the columns written together with the
// status change.
func buildTransitionSet(cur *domain.Establishment, req domain.TransitionRequest) domain.TransitionSet {
	now := time.Now().UTC()
	var set domain.TransitionSet

	switch req.Action {
	case domain.ActionSubmit:
		// Resubmission archives the moderator's notes instead of losing them.
		if len(cur.ModerationNotes) > 0 {
			when := cur.UpdatedAt
			if cur.ModeratedAt != nil {
				when = *cur.ModeratedAt
			}
			set.SetHistory = true
			set.History = append(append([]domain.NotesEntry{}, cur.NotesHistory...), domain.NotesEntry{
				Notes:       cur.ModerationNotes,
				ModeratedBy: cur.ModeratedBy,
				ModeratedAt: when,
			})
			set.SetNotes = true
		}
	case domain.ActionApprove:
		set.SetModerator, set.ModeratedBy, set.ModeratedAt = true, req.Actor.ID, now
		set.MarkPublished = true
		if len(req.Notes) > 0 {
			set.SetNotes, set.Notes = true, req.Notes
		}
	case domain.ActionReject:
		set.SetModerator, set.ModeratedBy, set.ModeratedAt = true, req.Actor.ID, now
		set.SetNotes, set.Notes = true, req.Notes
	case domain.ActionSuspend:
		set.SetSuspendReason, set.SuspendReason = true, strings.TrimSpace(req.Reason)
		if req.Actor.Role == domain.RoleModerator {
			set.SetModerator, set.ModeratedBy, set.ModeratedAt = true, req.Actor.ID, now
		}
	case domain.ActionUnsuspend:
		set.SetSuspendReason = true
	case domain.ActionArchive:
		set.SetModerator, set.ModeratedBy, set.ModeratedAt = true, req.Actor.ID, now
	}
	return set
}

// SyncAggregates stores counters recomputed by the collaborating
// subsystems. It is an internal surface; no actor or transition applies.
func (s *LifecycleService) SyncAggregates(ctx context.Context, id string, agg domain.Aggregates) error {
	if agg.ViewCount < 0 || agg.FavoriteCount < 0 || agg.ReviewCount < 0 {
		return domain.Validationf("aggregate counters must not be negative")
	}
	if agg.AverageRating < 0 || agg.AverageRating > 5 {
		return domain.Validationf("average rating must be within [0, 5]")
	}

	ok, err := s.repo.UpdateAggregates(ctx, id, agg)
	if err != nil {
		return fmt.Errorf("sync aggregates: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: establishment %s", domain.ErrNotFound, id)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *LifecycleService) recordAudit(ctx context.Context, actor domain.Actor, action domain.Action, id string, before, after *domain.Establishment) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, domain.AuditEvent{
		ID:        uuid.NewString(),
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		EntityID:  id,
		Old:       auditSnapshot(before),
		New:       auditSnapshot(after),
		CreatedAt: time.Now().UTC(),
	})
}

// auditSnapshot captures the fields a reviewer of the trail cares about;
// the full row is always recoverable from the establishments table.
func auditSnapshot(e *domain.Establishment) map[string]any {
	if e == nil {
		return nil
	}
	snap := map[string]any{
		"status": string(e.Status),
		"name":   e.Name,
	}
	if e.City != "" {
		snap["city"] = e.City
	}
	if len(e.ModerationNotes) > 0 {
		snap["moderation_notes"] = e.ModerationNotes
	}
	if e.SuspendReason != "" {
		snap["suspend_reason"] = e.SuspendReason
	}
	if e.PublishedAt != nil {
		snap["published_at"] = e.PublishedAt.UTC().Format(time.RFC3339)
	}
	return snap
}

func (s *LifecycleService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, publicViewKey(id))
}

func publicViewKey(id string) string { return "est:" + id }
