package geofence

import (
	"sync"

	"backend-fieldroute/internal/shared/geo"
)

// MinVertices is the smallest vertex count that forms a polygon.
const MinVertices = 3

// Engine captures a polygon from map clicks. Clicks append vertices while
// drawing; a double click closes the shape once it has at least MinVertices.
type Engine struct {
	mu       sync.Mutex
	drawing  bool
	vertices geo.Polygon
	polygon  geo.Polygon

	// OnFinalize, when set, receives a copy of every finalized polygon.
	OnFinalize func(geo.Polygon)
}

func NewEngine() *Engine {
	return &Engine{}
}

// BeginDrawing enters drawing mode, discarding any unfinished vertices.
// A previously finalized polygon stays available until a new one is finalized.
func (e *Engine) BeginDrawing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drawing = true
	e.vertices = nil
}

// Click appends a vertex. Ignored outside drawing mode.
func (e *Engine) Click(lat, lng float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.drawing {
		return
	}
	e.vertices = append(e.vertices, geo.Point{Lat: lat, Lng: lng})
}

// DoubleClick finalizes the polygon and leaves drawing mode. With fewer than
// MinVertices vertices it does nothing and reports false.
func (e *Engine) DoubleClick() bool {
	e.mu.Lock()
	if !e.drawing || len(e.vertices) < MinVertices {
		e.mu.Unlock()
		return false
	}
	e.polygon = e.vertices
	e.vertices = nil
	e.drawing = false
	done := e.OnFinalize
	poly := clonePolygon(e.polygon)
	e.mu.Unlock()

	if done != nil {
		done(poly)
	}
	return true
}

// Cancel leaves drawing mode without touching the finalized polygon.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drawing = false
	e.vertices = nil
}

// Clear drops both the in-progress vertices and the finalized polygon.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drawing = false
	e.vertices = nil
	e.polygon = nil
}

func (e *Engine) Drawing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drawing
}

// Vertices returns the in-progress vertex list.
func (e *Engine) Vertices() geo.Polygon {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clonePolygon(e.vertices)
}

// Polygon returns the last finalized polygon.
func (e *Engine) Polygon() (geo.Polygon, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.polygon) < MinVertices {
		return nil, false
	}
	return clonePolygon(e.polygon), true
}

// Filter keeps the items whose position lies inside poly.
func Filter[T geo.Locatable](items []T, poly geo.Polygon) []T {
	out := make([]T, 0, len(items))
	if len(poly) < MinVertices {
		return out
	}
	for _, it := range items {
		if geo.PointInPolygon(it.Position(), poly) {
			out = append(out, it)
		}
	}
	return out
}

func clonePolygon(p geo.Polygon) geo.Polygon {
	if p == nil {
		return nil
	}
	cp := make(geo.Polygon, len(p))
	copy(cp, p)
	return cp
}
