package tracking

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"backend-fieldroute/internal/shared/geo"
)

var ErrNoWatch = errors.New("no active watch")

// DeviceMessage is one frame pushed by the device over the feed socket:
// either a fix or an error reported by the device's location service.
type DeviceMessage struct {
	Lat       float64        `json:"lat"`
	Lng       float64        `json:"lng"`
	Accuracy  float64        `json:"accuracy"`
	Timestamp int64          `json:"timestamp"` // unix ms, 0 means now
	Error     *PlatformError `json:"error,omitempty"`
}

// Feed is a LocationWatcher fed by a device connection. A feed holds at most
// one watch; a new Watch replaces the previous one.
type Feed struct {
	now func() time.Time

	mu     sync.Mutex
	seq    uint64
	active *feedWatch
}

type feedWatch struct {
	id       uint64
	opts     WatchOptions
	onUpdate func(Fix)
	onError  func(error)
	timer    *time.Timer
}

func NewFeed() *Feed {
	return &Feed{now: time.Now}
}

func (f *Feed) Watch(opts WatchOptions, onUpdate func(Fix), onError func(error)) (WatchHandle, error) {
	if onUpdate == nil || onError == nil {
		return nil, errors.New("watch callbacks required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		f.stopLocked()
	}
	f.seq++
	w := &feedWatch{id: f.seq, opts: opts, onUpdate: onUpdate, onError: onError}
	if opts.Timeout > 0 {
		id := w.id
		w.timer = time.AfterFunc(opts.Timeout, func() { f.timeout(id) })
	}
	f.active = w
	return w.id, nil
}

func (f *Feed) Clear(h WatchHandle) {
	id, ok := h.(uint64)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil && f.active.id == id {
		f.stopLocked()
	}
}

func (f *Feed) stopLocked() {
	if f.active.timer != nil {
		f.active.timer.Stop()
	}
	f.active = nil
}

// Watching reports whether a watch is currently established.
func (f *Feed) Watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active != nil
}

func (f *Feed) timeout(id uint64) {
	f.mu.Lock()
	w := f.active
	if w == nil || w.id != id {
		f.mu.Unlock()
		return
	}
	w.timer.Reset(w.opts.Timeout)
	onError := w.onError
	f.mu.Unlock()

	onError(&PlatformError{Code: CodeTimeout, Message: "no position within timeout"})
}

// Deliver hands a device frame to the active watch. Fixes older than the
// watch's MaximumAge are dropped silently. Callbacks run on the caller's
// goroutine, outside the feed lock.
func (f *Feed) Deliver(msg DeviceMessage) error {
	f.mu.Lock()
	w := f.active
	if w == nil {
		f.mu.Unlock()
		return ErrNoWatch
	}

	if msg.Error != nil {
		onError := w.onError
		f.mu.Unlock()
		onError(msg.Error)
		return nil
	}

	if err := geo.ValidCoordinate(msg.Lat, msg.Lng); err != nil {
		onError := w.onError
		f.mu.Unlock()
		onError(&PlatformError{Code: CodePositionUnavailable, Message: err.Error()})
		return nil
	}

	now := f.now()
	at := now
	if msg.Timestamp > 0 {
		at = time.UnixMilli(msg.Timestamp)
	}
	if w.opts.MaximumAge > 0 && now.Sub(at) > w.opts.MaximumAge {
		f.mu.Unlock()
		return nil
	}
	if w.timer != nil {
		w.timer.Reset(w.opts.Timeout)
	}
	onUpdate := w.onUpdate
	f.mu.Unlock()

	onUpdate(Fix{Lat: msg.Lat, Lng: msg.Lng, Accuracy: msg.Accuracy, At: at})
	return nil
}

// DeliverJSON decodes a raw frame and delivers it.
func (f *Feed) DeliverJSON(raw []byte) error {
	var msg DeviceMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	return f.Deliver(msg)
}

// FeedHub hands out one Feed per salesperson.
type FeedHub struct {
	mu    sync.Mutex
	feeds map[string]*Feed
}

func NewFeedHub() *FeedHub {
	return &FeedHub{feeds: map[string]*Feed{}}
}

func (h *FeedHub) For(userID string) *Feed {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.feeds[userID]
	if !ok {
		f = NewFeed()
		h.feeds[userID] = f
	}
	return f
}
