package geo

import (
	"errors"
	"math"
	"time"

	"github.com/twpayne/go-polyline"
)

const earthRadiusKm = 6371.0

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GpsPoint is a single captured location sample.
type GpsPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

func (p GpsPoint) Point() Point {
	return Point{Lat: p.Lat, Lng: p.Lng}
}

// TrackKm is PathKm over a captured track, in capture order.
func TrackKm(points []GpsPoint) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}
	return total
}

// Polygon is an ordered ring of vertices. The closing edge from the last
// vertex back to the first is implicit.
type Polygon []Point

// HaversineKm returns the great-circle distance between two coordinates in kilometres.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding pushes a past 1 for near-antipodal pairs
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// PathKm sums the distance between consecutive points.
func PathKm(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}
	return total
}

// PointInPolygon reports whether p lies inside poly using even-odd ray casting
// along the longitude axis. Polygons with fewer than three vertices contain nothing.
//
// Edges are half-open: a point on a bottom or left edge counts as inside, a point
// on a top or right edge counts as outside. Vertices follow the same rule.
func PointInPolygon(p Point, poly Polygon) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		yi, xi := poly[i].Lat, poly[i].Lng
		yj, xj := poly[j].Lat, poly[j].Lng
		if (yi > p.Lat) != (yj > p.Lat) {
			crossX := (xj-xi)*(p.Lat-yi)/(yj-yi) + xi
			if p.Lng < crossX {
				inside = !inside
			}
		}
	}
	return inside
}

// ValidCoordinate checks that lat/lng are finite and inside WGS84 bounds.
func ValidCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// EncodePolyline encodes points in Google's polyline format for map overlays.
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline is the inverse of EncodePolyline.
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	points := make([]Point, len(coords))
	for i, c := range coords {
		points[i] = Point{Lat: c[0], Lng: c[1]}
	}
	return points, nil
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Locatable is anything with a position on the map.
type Locatable interface {
	Position() Point
}

func (p Point) Position() Point { return p }

func (p GpsPoint) Position() Point { return p.Point() }
