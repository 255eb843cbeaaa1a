// Package catalog holds the closed value sets the directory validates
// against: cities, establishment categories, cuisine types and price
// tiers. The sets are data, not code; deployments override the built-in
// defaults with a JSON file so adding a city never needs a release.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Catalog is an immutable snapshot of the allowed values. Build one via
// Default, FromJSON or Load and share it; lookups are read-only.
type Catalog struct {
	cities      map[string]struct{}
	categories  map[string]struct{}
	cuisines    map[string]struct{}
	priceRanges map[string]struct{}
}

type catalogFile struct {
	Cities      []string `json:"cities"`
	Categories  []string `json:"categories"`
	Cuisines    []string `json:"cuisines"`
	PriceRanges []string `json:"price_ranges"`
}

// Default returns the built-in catalog used when no override file is
// configured.
func Default() *Catalog {
	return build(catalogFile{
		Cities: []string{
			"minsk", "gomel", "mogilev", "vitebsk", "grodno", "brest",
		},
		Categories: []string{
			"restaurant", "cafe", "bar", "bakery",
			"fast_food", "pizzeria", "coffee_house", "pub",
		},
		Cuisines: []string{
			"belarusian", "european", "italian", "french", "georgian",
			"japanese", "chinese", "american", "caucasian", "vegetarian",
			"seafood", "grill",
		},
		PriceRanges: []string{"budget", "medium", "premium"},
	})
}

// FromJSON reads a catalog override. Every section must be present and
// non-empty; a partial file is a configuration mistake, not a merge.
func FromJSON(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	for name, vals := range map[string][]string{
		"cities":       f.Cities,
		"categories":   f.Categories,
		"cuisines":     f.Cuisines,
		"price_ranges": f.PriceRanges,
	} {
		if len(vals) == 0 {
			return nil, fmt.Errorf("catalog: section %q is empty", name)
		}
	}
	return build(f), nil
}

// Load reads a catalog override from disk.
func Load(path string) (*Catalog, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer fh.Close()
	return FromJSON(fh)
}

func build(f catalogFile) *Catalog {
	return &Catalog{
		cities:      toSet(f.Cities),
		categories:  toSet(f.Categories),
		cuisines:    toSet(f.Cuisines),
		priceRanges: toSet(f.PriceRanges),
	}
}

func toSet(vals []string) map[string]struct{} {
	s := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		v = Canonical(v)
		if v == "" {
			continue
		}
		s[v] = struct{}{}
	}
	return s
}

// Canonical maps raw input to the catalog's key form: trimmed,
// lower-cased, inner spaces collapsed to underscores.
func Canonical(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.ReplaceAll(v, " ", "_")
}

func (c *Catalog) ValidCity(v string) bool       { return has(c.cities, v) }
func (c *Catalog) ValidCategory(v string) bool   { return has(c.categories, v) }
func (c *Catalog) ValidCuisine(v string) bool    { return has(c.cuisines, v) }
func (c *Catalog) ValidPriceRange(v string) bool { return has(c.priceRanges, v) }

func has(s map[string]struct{}, v string) bool {
	_, ok := s[Canonical(v)]
	return ok
}

// NormalizeCategories canonicalizes, de-duplicates (keeping first
// occurrence order) and membership-checks a category list. The first
// unknown value aborts with an error naming it.
func (c *Catalog) NormalizeCategories(vals []string) ([]string, error) {
	return normalize(c.categories, "category", vals)
}

// NormalizeCuisines does the same for cuisine types.
func (c *Catalog) NormalizeCuisines(vals []string) ([]string, error) {
	return normalize(c.cuisines, "cuisine", vals)
}

func normalize(set map[string]struct{}, kind string, vals []string) ([]string, error) {
	out := make([]string, 0, len(vals))
	seen := make(map[string]struct{}, len(vals))
	for _, raw := range vals {
		v := Canonical(raw)
		if v == "" {
			continue
		}
		if _, ok := set[v]; !ok {
			return nil, fmt.Errorf("unknown %s %q", kind, raw)
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// Cities returns the allowed city keys, sorted. The other listers
// mirror it; all are for diagnostics and seed tooling, not hot paths.
func (c *Catalog) Cities() []string      { return keys(c.cities) }
func (c *Catalog) Categories() []string  { return keys(c.categories) }
func (c *Catalog) Cuisines() []string    { return keys(c.cuisines) }
func (c *Catalog) PriceRanges() []string { return keys(c.priceRanges) }

func keys(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
