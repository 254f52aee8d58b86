package tracking

import (
	"context"
	"errors"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Manager owns one Tracker per salesperson, each fed by that salesperson's
// device feed. A tracker is created on first use and resumes any session
// left open in the store.
type Manager struct {
	store Store
	feeds *FeedHub
	opts  []Option
	log   *log.Entry

	mu       sync.Mutex
	trackers map[string]*Tracker
}

func NewManager(store Store, feeds *FeedHub, opts ...Option) *Manager {
	if feeds == nil {
		feeds = NewFeedHub()
	}
	return &Manager{
		store:    store,
		feeds:    feeds,
		opts:     opts,
		log:      log.WithField("component", "tracking_manager"),
		trackers: map[string]*Tracker{},
	}
}

func (m *Manager) Store() Store { return m.store }

func (m *Manager) Feed(userID string) *Feed { return m.feeds.For(userID) }

// Tracker returns the salesperson's tracker, creating and resuming it on
// first access. A failed resume is logged and leaves the tracker idle; the
// next Start picks the open session up again.
func (m *Manager) Tracker(ctx context.Context, userID string) (*Tracker, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNotAuthenticated
	}

	m.mu.Lock()
	t, ok := m.trackers[userID]
	if !ok {
		t = NewTracker(userID, m.store, m.feeds.For(userID), m.opts...)
		m.trackers[userID] = t
	}
	m.mu.Unlock()

	if !ok {
		if _, err := t.Resume(ctx); err != nil {
			m.log.WithError(err).WithField("salesperson_id", userID).Warn("resume failed")
		}
	}
	return t, nil
}

func (m *Manager) Start(ctx context.Context, userID string) (Snapshot, error) {
	t, err := m.Tracker(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := t.Start(ctx); err != nil {
		return t.Snapshot(), err
	}
	return t.Snapshot(), nil
}

func (m *Manager) Stop(ctx context.Context, userID string) (Snapshot, error) {
	t, err := m.Tracker(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := t.Stop(ctx); err != nil {
		return t.Snapshot(), err
	}
	return t.Snapshot(), nil
}

func (m *Manager) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	t, err := m.Tracker(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return t.Snapshot(), nil
}

// Shutdown suspends every tracker, flushing its buffer to the still-open session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	trackers := make([]*Tracker, 0, len(m.trackers))
	for _, t := range m.trackers {
		trackers = append(trackers, t)
	}
	m.trackers = map[string]*Tracker{}
	m.mu.Unlock()

	var errs []error
	for _, t := range trackers {
		if err := t.Suspend(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		m.log.WithField("failed", len(errs)).Error("some trackers could not flush on shutdown")
	}
	return errors.Join(errs...)
}
