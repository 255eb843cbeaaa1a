package app

import (
	"fmt"
	"time"

	"eatpoint/internal/catalog"
	"eatpoint/internal/domain"
)

// FilterSet is a compiled discovery filter. Compose validates once
// against the catalog; Match is then a pure predicate both search modes
// run over their candidate sets. Within one axis values combine as OR,
// across axes as AND.
type FilterSet struct {
	categories map[string]struct{}
	cuisines   map[string]struct{}
	priceRange string
	minRating  float64
	hasRating  bool
	openNow    bool
	now        time.Time
}

// ComposeFilters validates raw filter options against the catalog and
// compiles them. Any unrecognized value fails the whole request with
// ErrInvalidFilterValue naming the offender; filters never degrade to
// "ignore what I don't know".
func ComposeFilters(cat *catalog.Catalog, opts domain.FilterOptions) (FilterSet, error) {
	fs := FilterSet{}

	if len(opts.Categories) > 0 {
		fs.categories = make(map[string]struct{}, len(opts.Categories))
		for _, raw := range opts.Categories {
			v := catalog.Canonical(raw)
			if !cat.ValidCategory(v) {
				return FilterSet{}, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidFilterValue, raw)
			}
			fs.categories[v] = struct{}{}
		}
	}

	if len(opts.Cuisines) > 0 {
		fs.cuisines = make(map[string]struct{}, len(opts.Cuisines))
		for _, raw := range opts.Cuisines {
			v := catalog.Canonical(raw)
			if !cat.ValidCuisine(v) {
				return FilterSet{}, fmt.Errorf("%w: unknown cuisine %q", domain.ErrInvalidFilterValue, raw)
			}
			fs.cuisines[v] = struct{}{}
		}
	}

	if opts.PriceRange != "" {
		v := catalog.Canonical(opts.PriceRange)
		if !cat.ValidPriceRange(v) {
			return FilterSet{}, fmt.Errorf("%w: unknown price range %q", domain.ErrInvalidFilterValue, opts.PriceRange)
		}
		fs.priceRange = v
	}

	if opts.MinRating != nil {
		r := *opts.MinRating
		if r < 0 || r > 5 {
			return FilterSet{}, fmt.Errorf("%w: min rating %v outside [0, 5]", domain.ErrInvalidFilterValue, r)
		}
		fs.minRating = r
		fs.hasRating = true
	}

	if opts.OpenNow {
		fs.openNow = true
		fs.now = opts.Now
		if fs.now.IsZero() {
			fs.now = time.Now()
		}
	}

	return fs, nil
}

// Match reports whether the establishment passes every requested axis.
func (f FilterSet) Match(e *domain.Establishment) bool {
	if len(f.categories) > 0 && !intersects(f.categories, e.Categories) {
		return false
	}
	if len(f.cuisines) > 0 && !intersects(f.cuisines, e.Cuisines) {
		return false
	}
	if f.priceRange != "" && e.PriceRange != f.priceRange {
		return false
	}
	if f.hasRating && e.Aggregates.AverageRating < f.minRating {
		return false
	}
	if f.openNow && !e.OpenAt(f.now) {
		return false
	}
	return true
}

func intersects(set map[string]struct{}, vals []string) bool {
	for _, v := range vals {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
