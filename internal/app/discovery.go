package app

import (
	"context"
	"fmt"
	"math"
	"sort"

	"eatpoint/internal/catalog"
	"eatpoint/internal/domain"
	"eatpoint/internal/geo"
)

// MaxRadiusKm caps a radius search; it comfortably spans the whole
// served region from any corner.
const MaxRadiusKm = 1000.0

// DiscoveryService answers consumer search queries over active listings.
// The repository narrows candidates to a bounding box; the exact
// haversine cutoff, filters, ordering and paging all happen here so the
// two search modes share one set of semantics.
type DiscoveryService struct {
	repo domain.EstablishmentRepository
	cat  *catalog.Catalog
}

func NewDiscoveryService(r domain.EstablishmentRepository, cat *catalog.Catalog) *DiscoveryService {
	return &DiscoveryService{repo: r, cat: cat}
}

type scored struct {
	e *domain.Establishment
	d float64
}

// SearchByRadius returns active listings within radiusKm of the center,
// nearest first. A listing exactly on the boundary is included.
func (s *DiscoveryService) SearchByRadius(ctx context.Context, q domain.RadiusQuery) (domain.SearchPage, error) {
	if q.Lat == nil || q.Lon == nil {
		return domain.SearchPage{}, fmt.Errorf("%w: center latitude and longitude are required", domain.ErrInvalidCoordinates)
	}
	lat, lon := *q.Lat, *q.Lon
	if math.IsNaN(lat) || math.IsNaN(lon) || !domain.InRegion(lat, lon) {
		return domain.SearchPage{}, fmt.Errorf("%w: center (%v, %v) outside served region", domain.ErrInvalidCoordinates, lat, lon)
	}
	if math.IsNaN(q.RadiusKm) || q.RadiusKm <= 0 || q.RadiusKm > MaxRadiusKm {
		return domain.SearchPage{}, fmt.Errorf("%w: radius must be in (0, %v] km", domain.ErrInvalidRadius, MaxRadiusKm)
	}
	fs, err := ComposeFilters(s.cat, q.Filters)
	if err != nil {
		return domain.SearchPage{}, err
	}
	pg, err := normalizePage(q.Page)
	if err != nil {
		return domain.SearchPage{}, err
	}

	cands, err := s.repo.ActiveInBounds(ctx, geo.BoundsAround(lat, lon, q.RadiusKm))
	if err != nil {
		return domain.SearchPage{}, fmt.Errorf("radius search: %w", err)
	}

	hits := make([]scored, 0, len(cands))
	for i := range cands {
		e := &cands[i]
		if !e.HasCoordinates() {
			continue
		}
		d := geo.DistanceKm(lat, lon, *e.Latitude, *e.Longitude)
		if d > q.RadiusKm {
			continue
		}
		if !fs.Match(e) {
			continue
		}
		hits = append(hits, scored{e: e, d: d})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].d != hits[j].d {
			return hits[i].d < hits[j].d
		}
		return newerFirst(hits[i].e, hits[j].e)
	})

	page, total, more := window(hits, pg)
	items := make([]domain.SearchItem, 0, len(page))
	for _, h := range page {
		// cutoff and ordering used full precision; the reported
		// distance is display data
		d := math.Round(h.d*100) / 100
		item := domain.SearchItem{PublicView: h.e.Public()}
		item.DistanceKm = &d
		items = append(items, item)
	}
	return domain.SearchPage{Items: items, Total: total, HasMore: more}, nil
}

// SearchByBounds returns active listings inside a map viewport, newest
// first. No distances are computed; a viewport has no center.
func (s *DiscoveryService) SearchByBounds(ctx context.Context, q domain.BoundsQuery) (domain.SearchPage, error) {
	if !q.Bounds.Valid() {
		return domain.SearchPage{}, fmt.Errorf("%w: %+v", domain.ErrInvalidBounds, q.Bounds)
	}
	fs, err := ComposeFilters(s.cat, q.Filters)
	if err != nil {
		return domain.SearchPage{}, err
	}
	pg, err := normalizePage(q.Page)
	if err != nil {
		return domain.SearchPage{}, err
	}

	cands, err := s.repo.ActiveInBounds(ctx, q.Bounds)
	if err != nil {
		return domain.SearchPage{}, fmt.Errorf("bounds search: %w", err)
	}

	hits := make([]*domain.Establishment, 0, len(cands))
	for i := range cands {
		e := &cands[i]
		if !e.HasCoordinates() || !q.Bounds.Contains(*e.Latitude, *e.Longitude) {
			continue
		}
		if !fs.Match(e) {
			continue
		}
		hits = append(hits, e)
	}

	sort.Slice(hits, func(i, j int) bool { return newerFirst(hits[i], hits[j]) })

	page, total, more := window(hits, pg)
	items := make([]domain.SearchItem, 0, len(page))
	for _, e := range page {
		items = append(items, domain.SearchItem{PublicView: e.Public()})
	}
	return domain.SearchPage{Items: items, Total: total, HasMore: more}, nil
}

// newerFirst is the shared tie-break: creation time descending, then ID
// ascending, so equal-score pages are stable across requests.
func newerFirst(a, b *domain.Establishment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}
