package advisor

import (
	"math"

	"backend-fieldroute/internal/shared/geo"
)

// DefaultRangeKm is the operational range used when the caller passes none.
const DefaultRangeKm = 30.0

type Result[T geo.Locatable] struct {
	NearestPoint  T       `json:"nearest_point"`
	DistanceKm    float64 `json:"distance_km"`
	IsWithinRange bool    `json:"is_within_range"`
}

// NearestPoint scans candidates for the one closest to (lat, lng) and flags
// whether it lies within rangeKm (DefaultRangeKm when rangeKm <= 0). The
// second return is false when there are no candidates.
func NearestPoint[T geo.Locatable](lat, lng float64, candidates []T, rangeKm float64) (Result[T], bool) {
	if rangeKm <= 0 {
		rangeKm = DefaultRangeKm
	}
	var res Result[T]
	if len(candidates) == 0 {
		return res, false
	}
	best := math.MaxFloat64
	for _, c := range candidates {
		p := c.Position()
		d := geo.HaversineKm(lat, lng, p.Lat, p.Lng)
		if d < best {
			best = d
			res.NearestPoint = c
		}
	}
	res.DistanceKm = best
	res.IsWithinRange = best <= rangeKm
	return res, true
}
