package tracking

import (
	"fmt"
	"time"
)

// W3C geolocation error codes, as reported by browsers and most mobile SDKs.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// WatchOptions mirror the platform watch configuration. The platform decides
// which fixes are delivered; the tracker does no extra staleness filtering.
type WatchOptions struct {
	HighAccuracy bool
	MaximumAge   time.Duration
	Timeout      time.Duration
}

// DefaultWatchOptions: high accuracy, fixes up to 10s old, 30s per update.
var DefaultWatchOptions = WatchOptions{
	HighAccuracy: true,
	MaximumAge:   10 * time.Second,
	Timeout:      30 * time.Second,
}

// Fix is a position reported by the platform.
type Fix struct {
	Lat      float64
	Lng      float64
	Accuracy float64
	At       time.Time
}

// PlatformError is a raw failure reported by the location source.
type PlatformError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform location error %d: %s", e.Code, e.Message)
}

// WatchHandle identifies an established watch.
type WatchHandle any

// LocationWatcher is a continuous location source. Callbacks may run on any
// goroutine but never before Watch returns. Clear must not wait for callbacks
// that are already running.
type LocationWatcher interface {
	Watch(opts WatchOptions, onUpdate func(Fix), onError func(error)) (WatchHandle, error)
	Clear(h WatchHandle)
}
