package tracking

import (
	"time"

	"backend-fieldroute/internal/shared/geo"
)

// Session is a persisted tracking session. EndedAt == nil marks it active;
// TotalKm is set together with EndedAt.
type Session struct {
	ID            string         `json:"id"`
	SalespersonID string         `json:"salesperson_id"`
	Points        []geo.GpsPoint `json:"points"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       *time.Time     `json:"ended_at,omitempty"`
	TotalKm       *float64       `json:"total_km,omitempty"`
}

func (s Session) Active() bool {
	return s.EndedAt == nil
}

// SessionUpdate carries the fields to change; nil fields are left untouched.
type SessionUpdate struct {
	Points  []geo.GpsPoint
	EndedAt *time.Time
	TotalKm *float64
}

type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
)

// Snapshot is the observable state of a Tracker.
type Snapshot struct {
	State      State          `json:"state"`
	SessionID  string         `json:"session_id,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	Points     []geo.GpsPoint `json:"points"`
	DistanceKm float64        `json:"distance_km"`
	LastError  *LocationError `json:"last_error,omitempty"`
}
