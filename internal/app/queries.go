package app

import (
	"context"
	"fmt"
	"time"

	"eatpoint/internal/domain"
)

// QueryService serves the non-search read paths: the public detail view
// plus the partner and moderation listings. Only the public view is
// cached; it is the single hot read and every mutation invalidates its
// key, so a suspended listing can never be served from cache.
type QueryService struct {
	repo     domain.EstablishmentRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.EstablishmentRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// GetPublic returns the consumer view of an active listing. Any other
// status reads as not found; the public surface does not reveal that a
// record exists in moderation.
func (s *QueryService) GetPublic(ctx context.Context, id string) (domain.PublicView, error) {
	key := publicViewKey(id)
	if s.cache != nil {
		var v domain.PublicView
		if ok, _ := s.cache.Get(ctx, key, &v); ok {
			return v, nil
		}
	}

	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.PublicView{}, err
	}
	if e.Status != domain.StatusActive {
		return domain.PublicView{}, fmt.Errorf("%w: establishment %s", domain.ErrNotFound, id)
	}

	v := e.Public()
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
	}
	return v, nil
}

// GetOwned returns the full record to its owner or to a moderator,
// whatever the status.
func (s *QueryService) GetOwned(ctx context.Context, actor domain.Actor, id string) (domain.Establishment, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Establishment{}, err
	}
	switch actor.Role {
	case domain.RoleModerator:
		return e, nil
	case domain.RolePartner:
		if e.OwnedBy(actor.ID) {
			return e, nil
		}
		return domain.Establishment{}, domain.Forbiddenf("caller does not own this establishment")
	default:
		return domain.Establishment{}, domain.Forbiddenf("unknown actor role %q", actor.Role)
	}
}

// ListByPartner pages through one partner's listings, newest first.
// Partners see only their own; moderators may inspect any portfolio.
func (s *QueryService) ListByPartner(ctx context.Context, actor domain.Actor, partnerID string, pg domain.PageQuery) (domain.EstablishmentsPage, error) {
	if actor.Role == domain.RolePartner && actor.ID != partnerID {
		return domain.EstablishmentsPage{}, domain.Forbiddenf("caller may list only their own establishments")
	}
	if actor.Role != domain.RolePartner && actor.Role != domain.RoleModerator {
		return domain.EstablishmentsPage{}, domain.Forbiddenf("unknown actor role %q", actor.Role)
	}
	pg, err := normalizePage(pg)
	if err != nil {
		return domain.EstablishmentsPage{}, err
	}

	items, total, err := s.repo.ListByPartner(ctx, partnerID, pg)
	if err != nil {
		return domain.EstablishmentsPage{}, fmt.Errorf("list by partner: %w", err)
	}
	return domain.EstablishmentsPage{
		Items:   items,
		Total:   total,
		HasMore: pg.Offset+len(items) < total,
	}, nil
}

// ModerationQueue pages through listings in one status, oldest update
// first, so resubmissions go to the back of the line. An empty status
// means the default queue: pending.
func (s *QueryService) ModerationQueue(ctx context.Context, actor domain.Actor, st domain.Status, pg domain.PageQuery) (domain.EstablishmentsPage, error) {
	if actor.Role != domain.RoleModerator {
		return domain.EstablishmentsPage{}, domain.Forbiddenf("moderation queue requires moderator capability")
	}
	if st == "" {
		st = domain.StatusPending
	}
	if !domain.ValidStatus(st) {
		return domain.EstablishmentsPage{}, domain.Validationf("unknown status %q", st)
	}
	pg, err := normalizePage(pg)
	if err != nil {
		return domain.EstablishmentsPage{}, err
	}

	items, total, err := s.repo.ListByStatus(ctx, st, pg)
	if err != nil {
		return domain.EstablishmentsPage{}, fmt.Errorf("moderation queue: %w", err)
	}
	return domain.EstablishmentsPage{
		Items:   items,
		Total:   total,
		HasMore: pg.Offset+len(items) < total,
	}, nil
}
