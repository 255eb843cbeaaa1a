package app

import "eatpoint/internal/domain"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// normalizePage applies the default limit and rejects out-of-range
// paging instead of clamping it silently.
func normalizePage(pg domain.PageQuery) (domain.PageQuery, error) {
	if pg.Limit == 0 {
		pg.Limit = DefaultPageLimit
	}
	if pg.Limit < 1 || pg.Limit > MaxPageLimit {
		return domain.PageQuery{}, domain.Validationf("limit must be 1-%d", MaxPageLimit)
	}
	if pg.Offset < 0 {
		return domain.PageQuery{}, domain.Validationf("offset must not be negative")
	}
	return pg, nil
}

// window cuts one page out of an already ordered, fully filtered slice
// and reports the full count alongside, so totals and items can never
// disagree.
func window[T any](items []T, pg domain.PageQuery) ([]T, int, bool) {
	total := len(items)
	if pg.Offset >= total {
		return []T{}, total, false
	}
	end := pg.Offset + pg.Limit
	if end > total {
		end = total
	}
	return items[pg.Offset:end], total, end < total
}
