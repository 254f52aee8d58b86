package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type fakeStore struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	seq         int
	createCalls int
	createErr   error
	activeErr   error
	updateErrs  []error
	updates     []SessionUpdate
	startedAt   time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:  map[string]*Session{},
		startedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) CreateSession(_ context.Context, salespersonID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.seq++
	session := &Session{ID: fmt.Sprintf("session-%d", s.seq), SalespersonID: salespersonID, StartedAt: s.startedAt}
	s.sessions[session.ID] = session
	return *session, nil
}

func (s *fakeStore) UpdateSession(_ context.Context, id string, update SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updateErrs) > 0 {
		err := s.updateErrs[0]
		s.updateErrs = s.updateErrs[1:]
		return err
	}
	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.updates = append(s.updates, update)
	if update.Points != nil {
		session.Points = update.Points
	}
	if update.EndedAt != nil {
		session.EndedAt = update.EndedAt
	}
	if update.TotalKm != nil {
		session.TotalKm = update.TotalKm
	}
	return nil
}

func (s *fakeStore) ActiveSession(_ context.Context, salespersonID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	for _, session := range s.sessions {
		if session.SalespersonID == salespersonID && session.Active() {
			cp := *session
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) HistoricalSessions(_ context.Context, salespersonID string, from, to time.Time) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Session
	for _, session := range s.sessions {
		if session.SalespersonID == salespersonID && !session.StartedAt.Before(from) && session.StartedAt.Before(to) {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (s *fakeStore) Session(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *session, nil
}

func (s *fakeStore) session(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sessions[id]
}

func (s *fakeStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *fakeStore) openSessions(salespersonID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, session := range s.sessions {
		if session.SalespersonID == salespersonID && session.Active() {
			n++
		}
	}
	return n
}

type fakeWatcher struct {
	mu       sync.Mutex
	watchErr error
	onUpdate func(Fix)
	onError  func(error)
	watches  int
	clears   int
	active   bool
}

func (w *fakeWatcher) Watch(_ WatchOptions, onUpdate func(Fix), onError func(error)) (WatchHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watchErr != nil {
		return nil, w.watchErr
	}
	w.watches++
	w.onUpdate, w.onError, w.active = onUpdate, onError, true
	return w.watches, nil
}

func (w *fakeWatcher) Clear(WatchHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clears++
	w.active = false
}

func (w *fakeWatcher) isActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// callbacks returns the last registered callbacks, even after Clear, so tests
// can simulate deliveries that race with the clear.
func (w *fakeWatcher) callbacks() (func(Fix), func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.onUpdate, w.onError
}

func (w *fakeWatcher) fix(lat, lng float64) {
	onUpdate, _ := w.callbacks()
	onUpdate(Fix{Lat: lat, Lng: lng})
}

func (w *fakeWatcher) fail(err error) {
	_, onError := w.callbacks()
	onError(err)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	closed []Session
	err    error
}

func (n *recordingNotifier) SessionClosed(_ context.Context, s Session) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, s)
	return n.err
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages map[string]int
}

func (b *recordingBroadcaster) Broadcast(sessionID string, _ []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.messages == nil {
		b.messages = map[string]int{}
	}
	b.messages[sessionID]++
}

var errDB = errors.New("db unavailable")
