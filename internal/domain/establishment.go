package domain

import "time"

// Status is the moderation state of a listing. Transitions between
// statuses go through the transition table in status.go; nothing else
// may write this field.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRejected  Status = "rejected"
	StatusArchived  Status = "archived"
)

// Statuses lists every valid status, in lifecycle order.
var Statuses = []Status{
	StatusDraft, StatusPending, StatusActive,
	StatusSuspended, StatusRejected, StatusArchived,
}

func ValidStatus(s Status) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Served region; coordinates outside are a validation error, never clamped.
const (
	MinLatitude  = 51.0
	MaxLatitude  = 56.0
	MinLongitude = 23.0
	MaxLongitude = 33.0
)

// InRegion reports whether a coordinate pair lies inside the served region.
func InRegion(lat, lon float64) bool {
	return lat >= MinLatitude && lat <= MaxLatitude &&
		lon >= MinLongitude && lon <= MaxLongitude
}

// HoursInterval is an opening interval within one day, "HH:MM" 24h clock.
// Closed marks a day explicitly closed (used by special hours).
type HoursInterval struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

// NotesEntry is a prior moderation-notes snapshot, archived when a
// rejected listing is resubmitted.
type NotesEntry struct {
	Notes       map[string]string `json:"notes"`
	ModeratedBy string            `json:"moderated_by"`
	ModeratedAt time.Time         `json:"moderated_at"`
}

// Aggregates are display counters recomputed by collaborating subsystems
// (reviews, favorites, analytics) and pushed through the aggregates-sync
// operation. The core never derives them itself.
type Aggregates struct {
	ViewCount     int64   `json:"view_count"`
	FavoriteCount int64   `json:"favorite_count"`
	ReviewCount   int64   `json:"review_count"`
	AverageRating float64 `json:"average_rating"`
}

// Establishment is a partner-owned listing.
type Establishment struct {
	ID        string
	PartnerID string

	Name        string
	Description string
	City        string
	Address     string
	Latitude    *float64
	Longitude   *float64

	Categories []string
	Cuisines   []string
	PriceRange string

	WorkingHours map[string]HoursInterval
	SpecialHours map[string]HoursInterval
	Attributes   map[string]bool

	Status          Status
	ModerationNotes map[string]string
	NotesHistory    []NotesEntry
	SuspendReason   string
	ModeratedBy     string
	ModeratedAt     *time.Time

	Aggregates Aggregates

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time
}

// HasCoordinates reports whether both coordinates are set.
func (e *Establishment) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// OwnedBy reports whether partnerID owns this listing.
func (e *Establishment) OwnedBy(partnerID string) bool {
	return partnerID != "" && e.PartnerID == partnerID
}

// Editable reports whether the listing accepts partner field updates.
// Only drafts and rejected listings are editable; everything else is
// frozen until a transition moves it back.
func (e *Establishment) Editable() bool {
	return e.Status == StatusDraft || e.Status == StatusRejected
}

// Role identifies the capability a caller acts under. Identity itself is
// established by the collaborating API gateway; the core only checks
// ownership and role.
type Role string

const (
	RolePartner   Role = "partner"
	RoleModerator Role = "moderator"
)

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	ID   string
	Role Role
}
