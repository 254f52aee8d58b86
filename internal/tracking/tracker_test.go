package tracking

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"backend-fieldroute/internal/shared/geo"
)

type sleepLog struct{ waits []time.Duration }

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestTracker(store Store, w LocationWatcher, clock *fakeClock, opts ...Option) (*Tracker, *sleepLog) {
	opts = append([]Option{WithClock(clock.now)}, opts...)
	tr := NewTracker("user-1", store, w, opts...)
	sl := &sleepLog{}
	tr.sleep = sl.sleep
	return tr, sl
}

func TestTrackerStartStop(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	notifier := &recordingNotifier{}
	tr, _ := newTestTracker(store, w, clock, WithNotifier(notifier))
	ctx := context.Background()

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if tr.State() != StateTracking || !w.isActive() {
		t.Fatalf("expected tracking with active watch")
	}

	w.fix(46.0569, 14.5058)
	clock.advance(5 * time.Second)
	w.fix(46.0600, 14.5100)
	clock.advance(5 * time.Second)
	w.fix(46.0650, 14.5150)

	snap := tr.Snapshot()
	if len(snap.Points) != 3 || snap.SessionID == "" || snap.StartedAt == nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.Points[0].Timestamp.Before(snap.Points[2].Timestamp) {
		t.Fatalf("points should carry capture time")
	}

	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if tr.State() != StateIdle || w.isActive() {
		t.Fatalf("expected idle with cleared watch")
	}

	stored := store.session(snap.SessionID)
	if stored.Active() || stored.TotalKm == nil {
		t.Fatalf("session should be closed with distance")
	}
	if len(stored.Points) != 3 {
		t.Fatalf("expected 3 stored points, got %d", len(stored.Points))
	}
	if math.Abs(*stored.TotalKm-geo.TrackKm(stored.Points)) > 1e-9 {
		t.Fatalf("total km mismatch")
	}
	if len(notifier.closed) != 1 || notifier.closed[0].ID != snap.SessionID {
		t.Fatalf("expected closed notification")
	}

	after := tr.Snapshot()
	if after.SessionID != "" || len(after.Points) != 0 || after.StartedAt != nil {
		t.Fatalf("expected cleared snapshot, got %+v", after)
	}
}

func TestTrackerStartRequiresUser(t *testing.T) {
	store := newFakeStore()
	tr := NewTracker(" ", store, &fakeWatcher{})
	if err := tr.Start(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if store.createCalls != 0 {
		t.Fatalf("store must not be touched")
	}
}

func TestTrackerStartWatchFailureCreatesNothing(t *testing.T) {
	store := newFakeStore()
	w := &fakeWatcher{watchErr: &PlatformError{Code: CodePermissionDenied, Message: "denied"}}
	tr, _ := newTestTracker(store, w, newFakeClock())

	err := tr.Start(context.Background())
	var le *LocationError
	if !errors.As(err, &le) || le.Kind != KindPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if store.createCalls != 0 {
		t.Fatalf("no session should be created")
	}
	if tr.State() != StateIdle {
		t.Fatalf("expected idle")
	}
	if tr.LastError() == nil {
		t.Fatalf("expected last error to be recorded")
	}
}

func TestTrackerStartCreateFailureClearsWatch(t *testing.T) {
	store := newFakeStore()
	store.createErr = errDB
	w := &fakeWatcher{}
	tr, _ := newTestTracker(store, w, newFakeClock())

	if err := tr.Start(context.Background()); !errors.Is(err, errDB) {
		t.Fatalf("expected db error, got %v", err)
	}
	if w.isActive() {
		t.Fatalf("watch should be cleared")
	}
	if tr.State() != StateIdle {
		t.Fatalf("expected idle")
	}
}

func TestTrackerStartTwiceIsNoop(t *testing.T) {
	store, w := newFakeStore(), &fakeWatcher{}
	tr, _ := newTestTracker(store, w, newFakeClock())
	ctx := context.Background()

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if store.createCalls != 1 || w.watches != 1 {
		t.Fatalf("expected one session and one watch, got %d/%d", store.createCalls, w.watches)
	}
}

func TestTrackerStopWhenIdle(t *testing.T) {
	store := newFakeStore()
	tr, _ := newTestTracker(store, &fakeWatcher{}, newFakeClock())
	if err := tr.Stop(context.Background()); err != nil {
		t.Fatalf("stop on idle: %v", err)
	}
	if store.updateCount() != 0 {
		t.Fatalf("no writes expected")
	}
}

func TestTrackerInterimPersistenceThrottled(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	tr, _ := newTestTracker(store, w, clock)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.advance(10 * time.Second)
	w.fix(46.05, 14.50)
	tr.Wait()
	if store.updateCount() != 0 {
		t.Fatalf("write before interval elapsed")
	}

	clock.advance(21 * time.Second)
	w.fix(46.06, 14.51)
	tr.Wait()
	if store.updateCount() != 1 {
		t.Fatalf("expected one interim write, got %d", store.updateCount())
	}
	if got := store.updates[0]; len(got.Points) != 2 || got.EndedAt != nil || got.TotalKm != nil {
		t.Fatalf("interim write must carry points only: %+v", got)
	}

	clock.advance(10 * time.Second)
	w.fix(46.07, 14.52)
	tr.Wait()
	if store.updateCount() != 1 {
		t.Fatalf("throttle not respected")
	}

	clock.advance(25 * time.Second)
	w.fix(46.08, 14.53)
	tr.Wait()
	if store.updateCount() != 2 {
		t.Fatalf("expected second interim write")
	}
}

func TestTrackerInterimFailureKeepsTracking(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	tr, _ := newTestTracker(store, w, clock)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	store.updateErrs = []error{errDB}
	clock.advance(31 * time.Second)
	w.fix(46.05, 14.50)
	tr.Wait()

	if tr.State() != StateTracking {
		t.Fatalf("interim failure must not stop tracking")
	}
	w.fix(46.06, 14.51)
	if len(tr.Snapshot().Points) != 2 {
		t.Fatalf("buffer should keep growing")
	}
}

func TestTrackerStopFailureKeepsSessionOpen(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	tr, sl := newTestTracker(store, w, clock)
	ctx := context.Background()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.fix(46.05, 14.50)
	w.fix(46.06, 14.51)
	sessionID := tr.Snapshot().SessionID

	store.updateErrs = []error{errDB, errDB, errDB}
	err := tr.Stop(ctx)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Phase != PhaseTerminal || pe.SessionID != sessionID {
		t.Fatalf("expected terminal persistence error, got %v", err)
	}
	if !errors.Is(err, errDB) {
		t.Fatalf("cause should be wrapped")
	}
	if len(sl.waits) != 2 || sl.waits[0] != 500*time.Millisecond || sl.waits[1] != time.Second {
		t.Fatalf("unexpected backoff: %v", sl.waits)
	}

	if tr.State() != StateTracking {
		t.Fatalf("failed stop must leave tracker tracking")
	}
	if !store.session(sessionID).Active() {
		t.Fatalf("session must stay open in store")
	}
	if !w.isActive() {
		t.Fatalf("watch should be re-armed")
	}
	if snap := tr.Snapshot(); len(snap.Points) != 2 || snap.SessionID != sessionID {
		t.Fatalf("buffer lost: %+v", snap)
	}

	w.fix(46.07, 14.52)
	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("retry stop: %v", err)
	}
	stored := store.session(sessionID)
	if stored.Active() || len(stored.Points) != 3 {
		t.Fatalf("retry should close session with all points: %+v", stored)
	}
}

func TestTrackerStopRetryRecovers(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	tr, sl := newTestTracker(store, w, clock)
	ctx := context.Background()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	store.updateErrs = []error{errDB}
	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("stop should succeed on second attempt: %v", err)
	}
	if len(sl.waits) != 1 {
		t.Fatalf("expected one backoff, got %v", sl.waits)
	}
}

func TestTrackerStopCancelledContext(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	tr, _ := newTestTracker(store, w, clock)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.sleep = sleepCtx
	store.updateErrs = []error{errDB, errDB, errDB}

	var pe *PersistenceError
	if err := tr.Stop(ctx); !errors.As(err, &pe) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if tr.State() != StateTracking {
		t.Fatalf("expected tracking after aborted stop")
	}
}

func TestTrackerLateCallbackIgnored(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	tr, _ := newTestTracker(store, w, clock)
	ctx := context.Background()

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	staleUpdate, staleError := w.callbacks()
	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	staleUpdate(Fix{Lat: 46.05, Lng: 14.50})
	staleError(&PlatformError{Code: CodeTimeout})
	if snap := tr.Snapshot(); len(snap.Points) != 0 || snap.LastError != nil {
		t.Fatalf("late callback mutated idle tracker: %+v", snap)
	}

	if err := tr.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	staleUpdate(Fix{Lat: 46.05, Lng: 14.50})
	if len(tr.Snapshot().Points) != 0 {
		t.Fatalf("callback from previous watch leaked into new session")
	}
	w.fix(46.05, 14.50)
	if len(tr.Snapshot().Points) != 1 {
		t.Fatalf("current watch should still deliver")
	}
}

func TestTrackerLocationErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{&PlatformError{Code: CodePermissionDenied}, KindPermissionDenied},
		{&PlatformError{Code: CodePositionUnavailable}, KindPositionUnavailable},
		{&PlatformError{Code: CodeTimeout}, KindTimeout},
		{&PlatformError{Code: 42}, KindGeneric},
		{errors.New("gps chip on fire"), KindGeneric},
	}

	for _, tc := range cases {
		store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
		var hooked *LocationError
		tr, _ := newTestTracker(store, w, clock, WithLocationErrorHook(func(le *LocationError) { hooked = le }))
		if err := tr.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}

		w.fail(tc.err)
		last := tr.LastError()
		if last == nil || last.Kind != tc.kind {
			t.Fatalf("expected %s, got %+v", tc.kind, last)
		}
		if hooked == nil || hooked.Kind != tc.kind {
			t.Fatalf("hook not called for %s", tc.kind)
		}
		if last.Message() == "" {
			t.Fatalf("expected user message")
		}
		if tr.State() != StateTracking || !w.isActive() {
			t.Fatalf("location error must not stop tracking")
		}

		w.fix(46.05, 14.50)
		if tr.LastError() != nil {
			t.Fatalf("successful fix should clear the error")
		}
	}
}

func TestTrackerStartAdoptsOpenSession(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	existing, _ := store.CreateSession(context.Background(), "user-1")
	prior := []geo.GpsPoint{{Lat: 46.05, Lng: 14.50, Timestamp: clock.now()}, {Lat: 46.06, Lng: 14.51, Timestamp: clock.now()}}
	_ = store.UpdateSession(context.Background(), existing.ID, SessionUpdate{Points: prior})

	tr, _ := newTestTracker(store, w, clock)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := tr.Snapshot()
	if snap.SessionID != existing.ID || len(snap.Points) != 2 {
		t.Fatalf("expected adopted session, got %+v", snap)
	}
	if store.createCalls != 1 {
		t.Fatalf("a second session was created")
	}
}

func TestTrackerResume(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	tr, _ := newTestTracker(store, w, clock)

	resumed, err := tr.Resume(context.Background())
	if err != nil || resumed {
		t.Fatalf("nothing to resume: %v %v", resumed, err)
	}

	_, _ = store.CreateSession(context.Background(), "user-1")
	resumed, err = tr.Resume(context.Background())
	if err != nil || !resumed {
		t.Fatalf("expected resume: %v %v", resumed, err)
	}
	if tr.State() != StateTracking || !w.isActive() {
		t.Fatalf("expected tracking after resume")
	}
}

func TestTrackerActiveSessionError(t *testing.T) {
	store := newFakeStore()
	store.activeErr = errDB
	tr, _ := newTestTracker(store, &fakeWatcher{}, newFakeClock())
	if err := tr.Start(context.Background()); !errors.Is(err, errDB) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestTrackerSuspendLeavesSessionOpen(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	tr, _ := newTestTracker(store, w, clock)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.fix(46.05, 14.50)
	sessionID := tr.Snapshot().SessionID

	if err := tr.Suspend(context.Background()); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	stored := store.session(sessionID)
	if !stored.Active() || len(stored.Points) != 1 {
		t.Fatalf("suspend should flush and keep the session open: %+v", stored)
	}
	if tr.State() != StateIdle || w.isActive() {
		t.Fatalf("suspend should release the watch")
	}
}

func TestTrackerBroadcastsPoints(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	b := &recordingBroadcaster{}
	tr, _ := newTestTracker(store, w, clock, WithBroadcaster(b))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.fix(46.05, 14.50)
	w.fix(46.06, 14.51)
	if b.messages[tr.Snapshot().SessionID] != 2 {
		t.Fatalf("expected two broadcasts, got %v", b.messages)
	}
}

func TestTrackerSnapshotDistance(t *testing.T) {
	store, w, clock := newFakeStore(), &fakeWatcher{}, newFakeClock()
	tr, _ := newTestTracker(store, w, clock)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.fix(46.0569, 14.5058)
	w.fix(46.2397, 15.2677)

	want := geo.HaversineKm(46.0569, 14.5058, 46.2397, 15.2677)
	if got := tr.Snapshot().DistanceKm; math.Abs(got-want) > 1e-9 {
		t.Fatalf("distance %v, want %v", got, want)
	}
}

func TestWithConfigKeepsDefaults(t *testing.T) {
	tr := NewTracker("user-1", newFakeStore(), &fakeWatcher{}, WithConfig(Config{PersistInterval: time.Minute}))
	if tr.cfg.PersistInterval != time.Minute {
		t.Fatalf("interval not applied")
	}
	if tr.cfg.StopRetries != DefaultStopRetries || tr.cfg.StopRetryBackoff != DefaultStopRetryBackoff {
		t.Fatalf("defaults overwritten: %+v", tr.cfg)
	}
	if tr.cfg.Watch != DefaultWatchOptions {
		t.Fatalf("watch options overwritten")
	}
}
