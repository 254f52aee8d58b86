package locations

import (
	"sync"

	"backend-fieldroute/internal/geofence"
	"backend-fieldroute/internal/shared/geo"

	log "github.com/sirupsen/logrus"
)

// Drawings keeps one geofence engine per user, driven by the map's click events.
type Drawings struct {
	mu      sync.Mutex
	engines map[string]*geofence.Engine
}

func NewDrawings() *Drawings {
	return &Drawings{engines: map[string]*geofence.Engine{}}
}

func (d *Drawings) For(userID string) *geofence.Engine {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.engines[userID]
	if !ok {
		e = geofence.NewEngine()
		e.OnFinalize = func(p geo.Polygon) {
			log.WithFields(log.Fields{"component": "geofence", "user_id": userID, "vertices": len(p)}).Debug("polygon finalized")
		}
		d.engines[userID] = e
	}
	return e
}

type drawingState struct {
	Drawing  bool        `json:"drawing"`
	Vertices geo.Polygon `json:"vertices"`
	Polygon  geo.Polygon `json:"polygon,omitempty"`
}

func stateOf(e *geofence.Engine) drawingState {
	st := drawingState{Drawing: e.Drawing(), Vertices: e.Vertices()}
	if st.Vertices == nil {
		st.Vertices = geo.Polygon{}
	}
	if poly, ok := e.Polygon(); ok {
		st.Polygon = poly
	}
	return st
}
