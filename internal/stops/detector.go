package stops

import (
	"math"
	"time"

	"backend-fieldroute/internal/gazetteer"
	"backend-fieldroute/internal/shared/geo"
)

const (
	// DefaultMinStopMinutes is the shortest dwell reported as a stop.
	DefaultMinStopMinutes = 3
	// CityMatchKm is the radius within which a sample is attributed to a city.
	CityMatchKm = 10.0
)

type Stop struct {
	City            gazetteer.City `json:"city"`
	ArrivalTime     time.Time      `json:"arrival_time"`
	DepartureTime   time.Time      `json:"departure_time"`
	DurationMinutes int            `json:"duration_minutes"`
}

type Detector struct {
	cities    *gazetteer.Gazetteer
	maxCityKm float64
}

func NewDetector(cities *gazetteer.Gazetteer) *Detector {
	return &Detector{cities: cities, maxCityKm: CityMatchKm}
}

// Detect groups a chronological track into per-city stops in a single pass.
// Samples with no city in range extend the open group but never open or close one.
// Groups shorter than minStopMinutes are dropped.
func (d *Detector) Detect(points []geo.GpsPoint, minStopMinutes int) []Stop {
	var (
		result  []Stop
		open    bool
		current gazetteer.City
		arrival time.Time
		depart  time.Time
	)

	closeGroup := func() {
		minutes := int(math.Round(float64(depart.Sub(arrival).Milliseconds()) / 60000))
		if minutes >= minStopMinutes {
			result = append(result, Stop{
				City:            current,
				ArrivalTime:     arrival,
				DepartureTime:   depart,
				DurationMinutes: minutes,
			})
		}
	}

	for _, p := range points {
		city, ok := d.cities.Nearest(p.Lat, p.Lng, d.maxCityKm)
		switch {
		case !ok:
			if open {
				depart = p.Timestamp
			}
		case !open:
			open, current, arrival, depart = true, city, p.Timestamp, p.Timestamp
		case city.ShortName == current.ShortName:
			depart = p.Timestamp
		default:
			closeGroup()
			current, arrival, depart = city, p.Timestamp, p.Timestamp
		}
	}
	if open {
		closeGroup()
	}
	return result
}
