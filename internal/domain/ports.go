package domain

import (
	"context"
	"time"

	"eatpoint/internal/geo"
)

// EstablishmentRepository is the persistence port for listings. All
// status-changing writes are guarded compare-and-set statements; the
// boolean result reports whether the guard matched (false = zero rows,
// the caller maps it to ErrStaleState).
type EstablishmentRepository interface {
	// Write paths
	Insert(ctx context.Context, e Establishment) error
	UpdateFields(ctx context.Context, id, partnerID string, patch FieldPatch) (bool, error)
	Transition(ctx context.Context, id string, from, to Status, set TransitionSet) (bool, error)
	UpdateAggregates(ctx context.Context, id string, agg Aggregates) (bool, error)

	// Read paths
	Get(ctx context.Context, id string) (Establishment, error)
	ListByPartner(ctx context.Context, partnerID string, pg PageQuery) ([]Establishment, int, error)
	ListByStatus(ctx context.Context, st Status, pg PageQuery) ([]Establishment, int, error)
	ActiveInBounds(ctx context.Context, b geo.Bounds) ([]Establishment, error)
}

// AuditSink records lifecycle mutations for accountability. The contract
// is non-propagating: Record never returns an error and must never block
// the caller for long; sinks swallow and log their own failures.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// FieldPatch is a partial update of the partner-mutable fields. Nil
// means "leave unchanged"; a non-nil pointer carries the new value and
// is re-validated on its own. Status is deliberately not part of this
// surface — only the named transitions change it.
type FieldPatch struct {
	Name         *string
	Description  *string
	City         *string
	Address      *string
	Latitude     *float64
	Longitude    *float64
	Categories   *[]string
	Cuisines     *[]string
	PriceRange   *string
	WorkingHours *map[string]HoursInterval
	SpecialHours *map[string]HoursInterval
	Attributes   *map[string]bool
}

// Empty reports whether the patch carries no fields at all.
func (p FieldPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.City == nil &&
		p.Address == nil && p.Latitude == nil && p.Longitude == nil &&
		p.Categories == nil && p.Cuisines == nil && p.PriceRange == nil &&
		p.WorkingHours == nil && p.SpecialHours == nil && p.Attributes == nil
}

// TransitionSet is the column set written atomically with a status
// compare-and-set. Set* flags distinguish "write this value" from
// "leave the column alone".
type TransitionSet struct {
	SetNotes bool
	Notes    map[string]string

	SetHistory bool
	History    []NotesEntry

	SetSuspendReason bool
	SuspendReason    string // empty clears the column

	SetModerator bool
	ModeratedBy  string
	ModeratedAt  time.Time

	// MarkPublished stamps published_at on first activation only.
	MarkPublished bool
}

// PageQuery is offset/limit pagination shared by listings and search.
type PageQuery struct {
	Limit  int
	Offset int
}

// FilterOptions are the recognized discovery filter axes, prior to
// composition. Empty sets mean "no restriction on this axis". Now is
// the clock the open-now predicate evaluates against; making it an
// input keeps composition deterministic.
type FilterOptions struct {
	Categories []string
	Cuisines   []string
	PriceRange string
	MinRating  *float64
	OpenNow    bool
	Now        time.Time
}

// RadiusQuery is a center-point search. Lat/Lon are pointers so a
// missing coordinate is distinguishable from zero and fails validation.
type RadiusQuery struct {
	Lat, Lon *float64
	RadiusKm float64
	Filters  FilterOptions
	Page     PageQuery
}

// BoundsQuery is a map-viewport search.
type BoundsQuery struct {
	Bounds  geo.Bounds
	Filters FilterOptions
	Page    PageQuery
}

// PublicView is the consumer-facing read model of an active listing.
// Moderation state and ownership stay internal.
type PublicView struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	Description  string                   `json:"description,omitempty"`
	City         string                   `json:"city"`
	Address      string                   `json:"address"`
	Latitude     float64                  `json:"latitude"`
	Longitude    float64                  `json:"longitude"`
	Categories   []string                 `json:"categories"`
	Cuisines     []string                 `json:"cuisines"`
	PriceRange   string                   `json:"price_range,omitempty"`
	WorkingHours map[string]HoursInterval `json:"working_hours,omitempty"`
	SpecialHours map[string]HoursInterval `json:"special_hours,omitempty"`
	Attributes   map[string]bool          `json:"attributes,omitempty"`
	Aggregates
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Public projects the establishment into its consumer-facing view.
// Active records always carry coordinates (submission required them).
func (e *Establishment) Public() PublicView {
	v := PublicView{
		ID:           e.ID,
		Name:         e.Name,
		Description:  e.Description,
		City:         e.City,
		Address:      e.Address,
		Categories:   e.Categories,
		Cuisines:     e.Cuisines,
		PriceRange:   e.PriceRange,
		WorkingHours: e.WorkingHours,
		SpecialHours: e.SpecialHours,
		Attributes:   e.Attributes,
		Aggregates:   e.Aggregates,
		PublishedAt:  e.PublishedAt,
	}
	if e.Latitude != nil {
		v.Latitude = *e.Latitude
	}
	if e.Longitude != nil {
		v.Longitude = *e.Longitude
	}
	return v
}

// SearchItem is one discovery hit. DistanceKm is set in radius mode
// only; bounds mode computes no distance.
type SearchItem struct {
	PublicView
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// SearchPage is a discovery result window. Total and HasMore come from
// the same filtered set as Items, so the numbers cannot drift apart.
type SearchPage struct {
	Items   []SearchItem `json:"items"`
	Total   int          `json:"total"`
	HasMore bool         `json:"has_more"`
}

// EstablishmentsPage is a partner/moderation listing window.
type EstablishmentsPage struct {
	Items   []Establishment
	Total   int
	HasMore bool
}
