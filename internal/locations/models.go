package locations

import (
	"time"

	"backend-fieldroute/internal/advisor"
	"backend-fieldroute/internal/shared/geo"
)

// FieldLocation is a site already covered by the sales force.
type FieldLocation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (l FieldLocation) Position() geo.Point {
	return geo.Point{Lat: l.Lat, Lng: l.Lng}
}

// Vetting tells whether a candidate site sits within operational range of
// existing coverage. Nearest is nil when there is no coverage yet.
type Vetting struct {
	Nearest       *FieldLocation `json:"nearest,omitempty"`
	DistanceKm    float64        `json:"distance_km"`
	IsWithinRange bool           `json:"is_within_range"`
	RangeKm       float64        `json:"range_km"`
}

func vettingFrom(res advisor.Result[FieldLocation], found bool, rangeKm float64) Vetting {
	v := Vetting{RangeKm: rangeKm}
	if !found {
		return v
	}
	nearest := res.NearestPoint
	v.Nearest = &nearest
	v.DistanceKm = res.DistanceKm
	v.IsWithinRange = res.IsWithinRange
	return v
}

type Created struct {
	Location FieldLocation `json:"location"`
	Vetting  Vetting       `json:"vetting"`
}
