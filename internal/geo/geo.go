// Package geo holds the pure spherical math behind discovery: great-circle
// distance and bounding-box containment. It keeps no state and performs
// no I/O, so both search modes and their tests share one source of truth.
package geo

import "math"

const earthRadiusKm = 6371.0

// Degree lengths used to size candidate boxes. The meridional value is
// the equatorial (minimum) length, so derived deltas always err large:
// the box must contain the full search circle, never clip it.
const (
	kmPerDegreeLat = 110.574
	kmPerDegreeLon = 111.320
)

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

// DistanceKm returns the great-circle distance between two coordinates
// in kilometers, by the haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := deg2rad(lat1)
	rlat2 := deg2rad(lat2)
	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Bounds is a latitude/longitude rectangle with inclusive edges.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Valid reports whether the rectangle is well formed: min ≤ max on both
// axes and every edge a legal coordinate.
func (b Bounds) Valid() bool {
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return false
	}
	return b.MinLat >= -90 && b.MaxLat <= 90 && b.MinLon >= -180 && b.MaxLon <= 180
}

// Contains reports whether the point lies inside the rectangle, edges
// included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BoundsAround returns a rectangle guaranteed to contain every point
// within radiusKm of the center. Deltas are computed from the minimum
// kilometers-per-degree on each axis, so the box over-covers slightly;
// the exact haversine cutoff trims the excess afterwards. Edges are
// clamped to legal coordinates (the served region is nowhere near the
// poles or the antimeridian, so clamping never loses candidates).
func BoundsAround(lat, lon, radiusKm float64) Bounds {
	latDelta := radiusKm / kmPerDegreeLat

	// Longitude degrees shrink with cos(lat); evaluate at the box edge
	// farthest from the equator so the delta is the widest needed.
	edgeLat := math.Min(math.Abs(lat)+latDelta, 90)
	cosEdge := math.Cos(deg2rad(edgeLat))
	lonDelta := 180.0
	if cosEdge > 1e-9 {
		lonDelta = radiusKm / (kmPerDegreeLon * cosEdge)
		if lonDelta > 180 {
			lonDelta = 180
		}
	}

	return Bounds{
		MinLat: math.Max(lat-latDelta, -90),
		MaxLat: math.Min(lat+latDelta, 90),
		MinLon: math.Max(lon-lonDelta, -180),
		MaxLon: math.Min(lon+lonDelta, 180),
	}
}
