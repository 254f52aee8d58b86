package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"backend-fieldroute/internal/metrics"
	"backend-fieldroute/internal/shared/geo"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultPersistInterval  = 30 * time.Second
	DefaultStopRetries      = 3
	DefaultStopRetryBackoff = 500 * time.Millisecond

	interimPersistTimeout = 10 * time.Second
)

// SessionNotifier is told about every session closed by Stop.
type SessionNotifier interface {
	SessionClosed(ctx context.Context, session Session) error
}

// Broadcaster fans a captured point out to live viewers of a session.
type Broadcaster interface {
	Broadcast(sessionID string, payload []byte)
}

type Config struct {
	PersistInterval  time.Duration
	StopRetries      int
	StopRetryBackoff time.Duration
	Watch            WatchOptions
}

func DefaultConfig() Config {
	return Config{
		PersistInterval:  DefaultPersistInterval,
		StopRetries:      DefaultStopRetries,
		StopRetryBackoff: DefaultStopRetryBackoff,
		Watch:            DefaultWatchOptions,
	}
}

type Option func(*Tracker)

func WithConfig(cfg Config) Option {
	return func(t *Tracker) {
		if cfg.PersistInterval > 0 {
			t.cfg.PersistInterval = cfg.PersistInterval
		}
		if cfg.StopRetries > 0 {
			t.cfg.StopRetries = cfg.StopRetries
		}
		if cfg.StopRetryBackoff > 0 {
			t.cfg.StopRetryBackoff = cfg.StopRetryBackoff
		}
		if cfg.Watch != (WatchOptions{}) {
			t.cfg.Watch = cfg.Watch
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithNotifier(n SessionNotifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(t *Tracker) { t.broadcaster = b }
}

// WithLocationErrorHook registers a callback for watch errors, e.g. to push
// them to the UI. It runs outside the tracker lock.
func WithLocationErrorHook(fn func(*LocationError)) Option {
	return func(t *Tracker) { t.onLocationError = fn }
}

// Tracker records one salesperson's movement. It moves between Idle and
// Tracking; every transition and every buffer append happens under mu, so
// the watch callback is the only writer of the buffer and readers never see
// it mid-update.
type Tracker struct {
	userID  string
	store   Store
	watcher LocationWatcher
	cfg     Config

	now             func() time.Time
	sleep           func(context.Context, time.Duration) error
	notifier        SessionNotifier
	broadcaster     Broadcaster
	onLocationError func(*LocationError)
	log             *log.Entry

	mu          sync.Mutex
	state       State
	sessionID   string
	startedAt   time.Time
	buffer      []geo.GpsPoint
	handle      WatchHandle
	generation  uint64
	lastPersist time.Time
	lastErr     *LocationError

	persisting atomic.Bool
	inflight   sync.WaitGroup
}

func NewTracker(userID string, store Store, watcher LocationWatcher, opts ...Option) *Tracker {
	t := &Tracker{
		userID:  userID,
		store:   store,
		watcher: watcher,
		cfg:     DefaultConfig(),
		now:     time.Now,
		sleep:   sleepCtx,
		state:   StateIdle,
		log:     log.WithFields(log.Fields{"component": "tracker", "salesperson_id": userID}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) UserID() string { return t.userID }

// Start opens a session and begins watching the location. If the store
// already holds an open session for the user, that session is resumed
// instead of creating a second one. Start on a tracking Tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) error {
	if strings.TrimSpace(t.userID) == "" {
		return ErrNotAuthenticated
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateTracking {
		return nil
	}

	existing, err := t.store.ActiveSession(ctx, t.userID)
	if err != nil {
		return fmt.Errorf("query active session: %w", err)
	}
	if existing != nil {
		return t.resumeLocked(*existing)
	}

	// The watch goes up before the session is created so a watch that cannot
	// be established leaves nothing open in the store.
	if err := t.watchLocked(); err != nil {
		return err
	}
	session, err := t.store.CreateSession(ctx, t.userID)
	if err != nil {
		t.clearWatchLocked()
		return fmt.Errorf("create session: %w", err)
	}

	t.enterTrackingLocked(session.ID, session.StartedAt, nil)
	t.log.WithField("session_id", session.ID).Info("tracking started")
	return nil
}

// Resume re-enters Tracking for a session left open by a previous process.
// It reports whether a session was resumed.
func (t *Tracker) Resume(ctx context.Context) (bool, error) {
	if strings.TrimSpace(t.userID) == "" {
		return false, ErrNotAuthenticated
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateTracking {
		return true, nil
	}

	existing, err := t.store.ActiveSession(ctx, t.userID)
	if err != nil {
		return false, fmt.Errorf("query active session: %w", err)
	}
	if existing == nil {
		return false, nil
	}
	if err := t.resumeLocked(*existing); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tracker) resumeLocked(session Session) error {
	if err := t.watchLocked(); err != nil {
		return err
	}
	t.enterTrackingLocked(session.ID, session.StartedAt, session.Points)
	t.log.WithFields(log.Fields{"session_id": session.ID, "points": len(session.Points)}).Info("tracking resumed")
	return nil
}

func (t *Tracker) enterTrackingLocked(sessionID string, startedAt time.Time, points []geo.GpsPoint) {
	t.sessionID = sessionID
	t.startedAt = startedAt
	t.buffer = append([]geo.GpsPoint(nil), points...)
	t.lastPersist = t.now()
	t.lastErr = nil
	t.state = StateTracking
	metrics.ActiveTrackers.Inc()
}

func (t *Tracker) watchLocked() error {
	t.generation++
	gen := t.generation
	handle, err := t.watcher.Watch(t.cfg.Watch,
		func(f Fix) { t.handleUpdate(gen, f) },
		func(err error) { t.handleError(gen, err) },
	)
	if err != nil {
		le := ClassifyLocationError(err)
		t.lastErr = le
		return le
	}
	t.handle = handle
	return nil
}

func (t *Tracker) clearWatchLocked() {
	if t.handle != nil {
		t.watcher.Clear(t.handle)
		t.handle = nil
	}
	// callbacks already past the watcher carry the old generation and are dropped
	t.generation++
}

func (t *Tracker) handleUpdate(gen uint64, f Fix) {
	t.mu.Lock()
	if gen != t.generation || t.state != StateTracking {
		t.mu.Unlock()
		metrics.PointsDroppedTotal.Inc()
		return
	}

	now := t.now()
	point := geo.GpsPoint{Lat: f.Lat, Lng: f.Lng, Timestamp: now}
	t.buffer = append(t.buffer, point)
	t.lastErr = nil
	sessionID := t.sessionID

	var snapshot []geo.GpsPoint
	if now.Sub(t.lastPersist) >= t.cfg.PersistInterval && t.persisting.CompareAndSwap(false, true) {
		t.lastPersist = now
		snapshot = append([]geo.GpsPoint(nil), t.buffer...)
		t.inflight.Add(1)
	}
	t.mu.Unlock()

	metrics.PointsReceivedTotal.Inc()
	if t.broadcaster != nil {
		if payload, err := json.Marshal(point); err == nil {
			t.broadcaster.Broadcast(sessionID, payload)
		}
	}
	if snapshot != nil {
		go t.persistInterim(sessionID, snapshot)
	}
}

// persistInterim writes the buffer without ending the session. Failures are
// logged and dropped; the next throttled write or Stop carries the points.
func (t *Tracker) persistInterim(sessionID string, points []geo.GpsPoint) {
	defer t.inflight.Done()
	defer t.persisting.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), interimPersistTimeout)
	defer cancel()

	started := time.Now()
	err := t.store.UpdateSession(ctx, sessionID, SessionUpdate{Points: points})
	metrics.PersistDurationMs.WithLabelValues(string(PhaseInterim)).Observe(float64(time.Since(started).Milliseconds()))
	if err != nil {
		metrics.PersistTotal.WithLabelValues(string(PhaseInterim), "error").Inc()
		t.log.WithError(&PersistenceError{Phase: PhaseInterim, SessionID: sessionID, Err: err}).
			Warn("interim persistence failed, tracking continues")
		return
	}
	metrics.PersistTotal.WithLabelValues(string(PhaseInterim), "ok").Inc()
	t.log.WithFields(log.Fields{"session_id": sessionID, "points": len(points)}).Debug("interim persistence done")
}

func (t *Tracker) handleError(gen uint64, err error) {
	le := ClassifyLocationError(err)

	t.mu.Lock()
	if gen != t.generation || t.state != StateTracking {
		t.mu.Unlock()
		return
	}
	t.lastErr = le
	hook := t.onLocationError
	t.mu.Unlock()

	metrics.LocationErrorsTotal.WithLabelValues(string(le.Kind)).Inc()
	t.log.WithError(err).WithField("kind", le.Kind).Warn("location watch error")
	if hook != nil {
		hook(le)
	}
}

// Stop ends the session. The watch is cleared before anything else. The
// final write is retried StopRetries times; if it still fails the session
// stays open in the store, the buffer is kept, the watch is re-armed and a
// *PersistenceError is returned so the caller can retry Stop.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateTracking {
		t.mu.Unlock()
		return nil
	}
	t.clearWatchLocked()
	t.inflight.Wait()

	endedAt := t.now()
	points := append([]geo.GpsPoint(nil), t.buffer...)
	totalKm := geo.TrackKm(points)
	sessionID := t.sessionID

	if err := t.persistTerminal(ctx, sessionID, SessionUpdate{Points: points, EndedAt: &endedAt, TotalKm: &totalKm}); err != nil {
		if werr := t.watchLocked(); werr != nil {
			t.log.WithError(werr).Warn("could not re-arm watch after failed stop")
		}
		t.mu.Unlock()
		return &PersistenceError{Phase: PhaseTerminal, SessionID: sessionID, Err: err}
	}

	closed := Session{
		ID:            sessionID,
		SalespersonID: t.userID,
		Points:        points,
		StartedAt:     t.startedAt,
		EndedAt:       &endedAt,
		TotalKm:       &totalKm,
	}
	t.state = StateIdle
	t.sessionID = ""
	t.buffer = nil
	t.lastErr = nil
	t.startedAt = time.Time{}
	metrics.ActiveTrackers.Dec()
	t.mu.Unlock()

	t.log.WithFields(log.Fields{"session_id": sessionID, "points": len(points), "total_km": totalKm}).Info("tracking stopped")
	if t.notifier != nil {
		if err := t.notifier.SessionClosed(ctx, closed); err != nil {
			t.log.WithError(err).WithField("session_id", sessionID).Warn("session closed notification failed")
		}
	}
	return nil
}

func (t *Tracker) persistTerminal(ctx context.Context, sessionID string, update SessionUpdate) error {
	attempts := t.cfg.StopRetries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		started := time.Now()
		err = t.store.UpdateSession(ctx, sessionID, update)
		metrics.PersistDurationMs.WithLabelValues(string(PhaseTerminal)).Observe(float64(time.Since(started).Milliseconds()))
		if err == nil {
			metrics.PersistTotal.WithLabelValues(string(PhaseTerminal), "ok").Inc()
			return nil
		}
		metrics.PersistTotal.WithLabelValues(string(PhaseTerminal), "error").Inc()
		t.log.WithError(err).WithFields(log.Fields{"session_id": sessionID, "attempt": attempt}).Error("final session write failed")
		if attempt == attempts {
			break
		}
		if serr := t.sleep(ctx, t.cfg.StopRetryBackoff*time.Duration(attempt)); serr != nil {
			return fmt.Errorf("%w (retry aborted: %v)", err, serr)
		}
	}
	return err
}

// Suspend writes the buffer and releases the watch while leaving the session
// open in the store, so the next Resume picks it up. Used on shutdown.
func (t *Tracker) Suspend(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateTracking {
		return nil
	}
	t.clearWatchLocked()
	t.inflight.Wait()

	sessionID := t.sessionID
	points := append([]geo.GpsPoint(nil), t.buffer...)
	err := t.store.UpdateSession(ctx, sessionID, SessionUpdate{Points: points})

	t.state = StateIdle
	t.sessionID = ""
	t.buffer = nil
	metrics.ActiveTrackers.Dec()
	if err != nil {
		return &PersistenceError{Phase: PhaseInterim, SessionID: sessionID, Err: err}
	}
	t.log.WithFields(log.Fields{"session_id": sessionID, "points": len(points)}).Info("tracking suspended")
	return nil
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastError is the most recent watch error, cleared by the next fix.
func (t *Tracker) LastError() *LocationError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := Snapshot{
		State:     t.state,
		SessionID: t.sessionID,
		Points:    append([]geo.GpsPoint{}, t.buffer...),
		LastError: t.lastErr,
	}
	if t.state == StateTracking {
		started := t.startedAt
		snap.StartedAt = &started
	}
	snap.DistanceKm = geo.TrackKm(snap.Points)
	return snap
}

// Wait blocks until in-flight interim writes finish.
func (t *Tracker) Wait() {
	t.inflight.Wait()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
