package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"eatpoint/internal/domain"
	"eatpoint/internal/geo"
)

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// json* helpers marshal the JSON columns; empty collections store as
// NULL rather than "{}" so clearing a field is visible in the row.
func jsonStrings(v []string) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonHours(v map[string]domain.HoursInterval) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonFlags(v map[string]bool) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonNotes(v map[string]string) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonHistory(v []domain.NotesEntry) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Insert(ctx context.Context, e domain.Establishment) error {
	_, err := r.db.ExecContext(ctx, insertEstablishmentSQL,
		e.ID,
		e.PartnerID,
		e.Name,
		valStr(e.Description),
		valStr(e.City),
		valStr(e.Address),
		valF64(e.Latitude),
		valF64(e.Longitude),
		jsonStrings(e.Categories),
		jsonStrings(e.Cuisines),
		valStr(e.PriceRange),
		jsonHours(e.WorkingHours),
		jsonHours(e.SpecialHours),
		jsonFlags(e.Attributes),
		string(e.Status),
		e.CreatedAt,
		e.UpdatedAt,
	)
	return err
}

// UpdateFields writes only the carried patch fields. The guard keeps the
// write inside the editable statuses and the owning partner; a guard
// miss reports false without touching the row.
func (r *Repo) UpdateFields(ctx context.Context, id, partnerID string, patch domain.FieldPatch) (bool, error) {
	sets := make([]string, 0, 13)
	args := make([]any, 0, 15)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", valStr(*patch.Description))
	}
	if patch.City != nil {
		add("city", valStr(*patch.City))
	}
	if patch.Address != nil {
		add("address", valStr(*patch.Address))
	}
	if patch.Latitude != nil {
		add("lat", *patch.Latitude)
	}
	if patch.Longitude != nil {
		add("lon", *patch.Longitude)
	}
	if patch.Categories != nil {
		add("categories", jsonStrings(*patch.Categories))
	}
	if patch.Cuisines != nil {
		add("cuisines", jsonStrings(*patch.Cuisines))
	}
	if patch.PriceRange != nil {
		add("price_range", valStr(*patch.PriceRange))
	}
	if patch.WorkingHours != nil {
		add("working_hours", jsonHours(*patch.WorkingHours))
	}
	if patch.SpecialHours != nil {
		add("special_hours", jsonHours(*patch.SpecialHours))
	}
	if patch.Attributes != nil {
		add("attributes", jsonFlags(*patch.Attributes))
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP(6)")

	q := "UPDATE establishments SET " + strings.Join(sets, ", ") + updateFieldsGuard
	args = append(args, id, partnerID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Transition is the compare-and-set: the row moves from -> to only if it
// still is in from. The extra columns of the set ride along atomically.
func (r *Repo) Transition(ctx context.Context, id string, from, to domain.Status, set domain.TransitionSet) (bool, error) {
	sets := []string{"status = ?"}
	args := []any{string(to)}

	if set.SetNotes {
		sets = append(sets, "moderation_notes = ?")
		args = append(args, jsonNotes(set.Notes))
	}
	if set.SetHistory {
		sets = append(sets, "notes_history = ?")
		args = append(args, jsonHistory(set.History))
	}
	if set.SetSuspendReason {
		sets = append(sets, "suspend_reason = ?")
		args = append(args, valStr(set.SuspendReason))
	}
	if set.SetModerator {
		sets = append(sets, "moderated_by = ?", "moderated_at = ?")
		args = append(args, set.ModeratedBy, set.ModeratedAt)
	}
	if set.MarkPublished {
		sets = append(sets, "published_at = COALESCE(published_at, CURRENT_TIMESTAMP(6))")
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP(6)")

	q := "UPDATE establishments SET " + strings.Join(sets, ", ") + transitionGuard
	args = append(args, id, string(from))

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repo) UpdateAggregates(ctx context.Context, id string, agg domain.Aggregates) (bool, error) {
	res, err := r.db.ExecContext(ctx, updateAggregatesSQL,
		agg.ViewCount, agg.FavoriteCount, agg.ReviewCount, agg.AverageRating, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repo) Get(ctx context.Context, id string) (domain.Establishment, error) {
	row := r.db.QueryRowContext(ctx, getEstablishmentSQL, id)
	e, err := scanEstablishment(row)
	if err == sql.ErrNoRows {
		return domain.Establishment{}, fmt.Errorf("%w: establishment %s", domain.ErrNotFound, id)
	}
	return e, err
}

func (r *Repo) ListByPartner(ctx context.Context, partnerID string, pg domain.PageQuery) ([]domain.Establishment, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, countByPartnerSQL, partnerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, listByPartnerSQL, partnerID, pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collect(rows)
	return items, total, err
}

func (r *Repo) ListByStatus(ctx context.Context, st domain.Status, pg domain.PageQuery) ([]domain.Establishment, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, countByStatusSQL, string(st)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, listByStatusSQL, string(st), pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collect(rows)
	return items, total, err
}

func (r *Repo) ActiveInBounds(ctx context.Context, b geo.Bounds) ([]domain.Establishment, error) {
	rows, err := r.db.QueryContext(ctx, activeInBoundsSQL, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]domain.Establishment, error) {
	var out []domain.Establishment
	for rows.Next() {
		e, err := scanEstablishment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// scanEstablishment reads one selectCols row from either a *sql.Row or
// *sql.Rows.
func scanEstablishment(sc interface{ Scan(...any) error }) (domain.Establishment, error) {
	var (
		e                             domain.Establishment
		desc, city, addr              sql.NullString
		price, suspReason, modBy      sql.NullString
		lat, lon                      sql.NullFloat64
		status                        string
		moderatedAt, publishedAt      sql.NullTime
		categories, cuisines          []byte
		workingHours, specialHours    []byte
		attributes, notes, history    []byte
	)

	if err := sc.Scan(
		&e.ID, &e.PartnerID, &e.Name, &desc, &city, &addr, &lat, &lon,
		&categories, &cuisines, &price, &workingHours, &specialHours, &attributes,
		&status, &notes, &history, &suspReason, &modBy, &moderatedAt,
		&e.Aggregates.ViewCount, &e.Aggregates.FavoriteCount, &e.Aggregates.ReviewCount, &e.Aggregates.AverageRating,
		&e.CreatedAt, &e.UpdatedAt, &publishedAt,
	); err != nil {
		return domain.Establishment{}, err
	}

	e.Status = domain.Status(status)
	if desc.Valid {
		e.Description = desc.String
	}
	if city.Valid {
		e.City = city.String
	}
	if addr.Valid {
		e.Address = addr.String
	}
	if lat.Valid {
		e.Latitude = &lat.Float64
	}
	if lon.Valid {
		e.Longitude = &lon.Float64
	}
	if price.Valid {
		e.PriceRange = price.String
	}
	if suspReason.Valid {
		e.SuspendReason = suspReason.String
	}
	if modBy.Valid {
		e.ModeratedBy = modBy.String
	}
	if moderatedAt.Valid {
		t := moderatedAt.Time
		e.ModeratedAt = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		e.PublishedAt = &t
	}

	_ = json.Unmarshal(categories, &e.Categories)
	_ = json.Unmarshal(cuisines, &e.Cuisines)
	_ = json.Unmarshal(workingHours, &e.WorkingHours)
	_ = json.Unmarshal(specialHours, &e.SpecialHours)
	_ = json.Unmarshal(attributes, &e.Attributes)
	_ = json.Unmarshal(notes, &e.ModerationNotes)
	_ = json.Unmarshal(history, &e.NotesHistory)
	return e, nil
}
