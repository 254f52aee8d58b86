package tracking

import (
	"errors"
	"testing"
	"time"
)

type feedRecorder struct {
	fixes  chan Fix
	errors chan error
}

func newFeedRecorder() *feedRecorder {
	return &feedRecorder{fixes: make(chan Fix, 8), errors: make(chan error, 8)}
}

func (r *feedRecorder) onUpdate(f Fix)    { r.fixes <- f }
func (r *feedRecorder) onError(err error) { r.errors <- err }

func TestFeedDeliversFixes(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	feed := NewFeed()
	feed.now = func() time.Time { return now }
	rec := newFeedRecorder()

	if _, err := feed.Watch(WatchOptions{MaximumAge: 10 * time.Second}, rec.onUpdate, rec.onError); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := feed.Deliver(DeviceMessage{Lat: 46.05, Lng: 14.50, Accuracy: 8, Timestamp: now.Add(-2 * time.Second).UnixMilli()}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	select {
	case f := <-rec.fixes:
		if f.Lat != 46.05 || f.Accuracy != 8 {
			t.Fatalf("unexpected fix: %+v", f)
		}
	default:
		t.Fatalf("fix not delivered")
	}

	// older than MaximumAge
	if err := feed.Deliver(DeviceMessage{Lat: 46.05, Lng: 14.50, Timestamp: now.Add(-time.Minute).UnixMilli()}); err != nil {
		t.Fatalf("deliver stale: %v", err)
	}
	if len(rec.fixes) != 0 {
		t.Fatalf("stale fix should be dropped")
	}
}

func TestFeedDeviceErrors(t *testing.T) {
	feed := NewFeed()
	rec := newFeedRecorder()
	if _, err := feed.Watch(WatchOptions{}, rec.onUpdate, rec.onError); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := feed.DeliverJSON([]byte(`{"error":{"code":1,"message":"denied"}}`)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	err := <-rec.errors
	if le := ClassifyLocationError(err); le.Kind != KindPermissionDenied {
		t.Fatalf("expected permission denied, got %v", le.Kind)
	}

	if err := feed.Deliver(DeviceMessage{Lat: 123, Lng: 14.5}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	err = <-rec.errors
	if le := ClassifyLocationError(err); le.Kind != KindPositionUnavailable {
		t.Fatalf("expected position unavailable, got %v", le.Kind)
	}

	if err := feed.DeliverJSON([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFeedClear(t *testing.T) {
	feed := NewFeed()
	rec := newFeedRecorder()
	h, _ := feed.Watch(WatchOptions{}, rec.onUpdate, rec.onError)
	if !feed.Watching() {
		t.Fatalf("expected watching")
	}
	feed.Clear(h)
	if feed.Watching() {
		t.Fatalf("expected cleared")
	}
	if err := feed.Deliver(DeviceMessage{Lat: 46, Lng: 14}); !errors.Is(err, ErrNoWatch) {
		t.Fatalf("expected ErrNoWatch, got %v", err)
	}
}

func TestFeedNewWatchReplacesOld(t *testing.T) {
	feed := NewFeed()
	old, fresh := newFeedRecorder(), newFeedRecorder()
	h1, _ := feed.Watch(WatchOptions{}, old.onUpdate, old.onError)
	_, _ = feed.Watch(WatchOptions{}, fresh.onUpdate, fresh.onError)

	// clearing the replaced handle leaves the new watch alone
	feed.Clear(h1)
	if err := feed.Deliver(DeviceMessage{Lat: 46, Lng: 14}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(old.fixes) != 0 || len(fresh.fixes) != 1 {
		t.Fatalf("fix went to the wrong watch")
	}
}

func TestFeedTimeout(t *testing.T) {
	feed := NewFeed()
	rec := newFeedRecorder()
	h, _ := feed.Watch(WatchOptions{Timeout: 20 * time.Millisecond}, rec.onUpdate, rec.onError)
	defer feed.Clear(h)

	select {
	case err := <-rec.errors:
		if le := ClassifyLocationError(err); le.Kind != KindTimeout {
			t.Fatalf("expected timeout, got %v", le.Kind)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout error not raised")
	}
	if !feed.Watching() {
		t.Fatalf("timeout must not end the watch")
	}
}

func TestFeedWatchRequiresCallbacks(t *testing.T) {
	if _, err := NewFeed().Watch(WatchOptions{}, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFeedHubReusesFeeds(t *testing.T) {
	hub := NewFeedHub()
	if hub.For("a") != hub.For("a") {
		t.Fatalf("expected same feed")
	}
	if hub.For("a") == hub.For("b") {
		t.Fatalf("expected distinct feeds")
	}
}
