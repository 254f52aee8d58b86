package gazetteer

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"backend-fieldroute/internal/shared/geo"

	"gopkg.in/yaml.v3"
)

// DefaultMaxDistanceKm is the lookup radius used when callers have no better value.
const DefaultMaxDistanceKm = 15.0

var ErrEmptyCorpus = errors.New("gazetteer: no cities")

type City struct {
	Name      string  `json:"name" yaml:"name"`
	ShortName string  `json:"short_name" yaml:"short_name"`
	Lat       float64 `json:"lat" yaml:"lat"`
	Lng       float64 `json:"lng" yaml:"lng"`
}

// Gazetteer is a fixed set of reference cities. Lookups are a linear scan,
// O(n) per query; fine for a few dozen settlements. A spatial index can
// replace the scan without changing Nearest's contract.
type Gazetteer struct {
	cities []City
}

func New(cities []City) *Gazetteer {
	cp := make([]City, len(cities))
	copy(cp, cities)
	return &Gazetteer{cities: cp}
}

// Default returns the built-in Slovenian corpus.
func Default() *Gazetteer {
	return New(slovenianCities)
}

// Load reads a YAML list of cities, e.g.
//
//	- name: Ljubljana
//	  short_name: lj
//	  lat: 46.0569
//	  lng: 14.5058
func Load(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	var cities []City
	if err := yaml.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("parse gazetteer: %w", err)
	}
	if len(cities) == 0 {
		return nil, ErrEmptyCorpus
	}
	for i, c := range cities {
		if strings.TrimSpace(c.ShortName) == "" {
			return nil, fmt.Errorf("city %d (%s): short_name required", i, c.Name)
		}
		if err := geo.ValidCoordinate(c.Lat, c.Lng); err != nil {
			return nil, fmt.Errorf("city %d (%s): %w", i, c.Name, err)
		}
	}
	return New(cities), nil
}

// Nearest returns the closest city to (lat, lng) if it is within maxDistanceKm.
func (g *Gazetteer) Nearest(lat, lng, maxDistanceKm float64) (City, bool) {
	best := -1
	bestKm := math.MaxFloat64
	for i, c := range g.cities {
		d := geo.HaversineKm(lat, lng, c.Lat, c.Lng)
		if d < bestKm {
			best, bestKm = i, d
		}
	}
	if best < 0 || bestKm > maxDistanceKm {
		return City{}, false
	}
	return g.cities[best], true
}

func (g *Gazetteer) Cities() []City {
	cp := make([]City, len(g.cities))
	copy(cp, g.cities)
	return cp
}

func (g *Gazetteer) Len() int {
	return len(g.cities)
}
