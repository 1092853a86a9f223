package app

import (
	"sync"
	"testing"
	"time"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

type recordingWatcher struct {
	mu      sync.Mutex
	online  []domain.UserID
	offline []domain.UserID
	seen    map[domain.UserID]time.Time
}

func newRecordingWatcher() *recordingWatcher {
	return &recordingWatcher{seen: make(map[domain.UserID]time.Time)}
}

func (w *recordingWatcher) UserOnline(id domain.UserID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.online = append(w.online, id)
}

func (w *recordingWatcher) UserOffline(id domain.UserID, lastSeen time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.offline = append(w.offline, id)
	w.seen[id] = lastSeen
}

func (w *recordingWatcher) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.online), len(w.offline)
}

func handleFor(u domain.UserID, id core.ConnID) *core.ConnectionHandle {
	return &core.ConnectionHandle{ID: id, UserID: u, ConnectedAt: time.Now(), Conn: &fakeConn{}}
}

func TestRegistry_PresenceTransitions(t *testing.T) {
	r := NewRegistry()
	w := newRecordingWatcher()
	r.Watch(w)

	r.Register(handleFor("alice", "c1"))
	r.Register(handleFor("alice", "c2"))

	if on, off := w.counts(); on != 1 || off != 0 {
		t.Fatalf("after two registrations: online=%d offline=%d, want 1/0", on, off)
	}
	if got := len(r.HandlesFor("alice")); got != 2 {
		t.Fatalf("HandlesFor = %d handles, want 2", got)
	}

	r.Deregister("c1")
	if on, off := w.counts(); on != 1 || off != 0 {
		t.Fatalf("after first deregister: online=%d offline=%d, want 1/0", on, off)
	}
	if !r.Online("alice") {
		t.Fatal("alice should still be online with one handle left")
	}

	r.Deregister("c2")
	if on, off := w.counts(); on != 1 || off != 1 {
		t.Fatalf("after last deregister: online=%d offline=%d, want 1/1", on, off)
	}
	if r.Online("alice") {
		t.Fatal("alice should be offline")
	}
	if w.seen["alice"].IsZero() {
		t.Fatal("offline should carry a lastSeen stamp")
	}

	rec := r.Presence("alice")
	if rec.Status != domain.PresenceOffline || rec.LastSeenAt.IsZero() {
		t.Fatalf("Presence = %+v, want offline with lastSeen", rec)
	}
}

func TestRegistry_DuplicateAndUnknown(t *testing.T) {
	r := NewRegistry()
	w := newRecordingWatcher()
	r.Watch(w)

	h := handleFor("bob", "c1")
	r.Register(h)
	r.Register(h)
	if on, _ := w.counts(); on != 1 {
		t.Fatalf("duplicate register emitted %d online events, want 1", on)
	}
	if got := len(r.HandlesFor("bob")); got != 1 {
		t.Fatalf("HandlesFor = %d, want 1", got)
	}

	// unknown handle is a silent no-op
	r.Deregister("nope")
	if _, off := w.counts(); off != 0 {
		t.Fatal("unknown deregister must not emit offline")
	}
}

func TestRegistry_RebindEvictsOldOwner(t *testing.T) {
	r := NewRegistry()
	w := newRecordingWatcher()
	r.Watch(w)

	r.Register(handleFor("alice", "c1"))
	r.Register(handleFor("mallory", "c1"))

	if r.Online("alice") {
		t.Fatal("alice must go offline when her only connection rebinds")
	}
	if !r.Online("mallory") {
		t.Fatal("mallory should be online on the rebound connection")
	}
	if got := len(r.HandlesFor("alice")); got != 0 {
		t.Fatalf("alice still owns %d handles after the rebind", got)
	}
	if on, off := w.counts(); on != 2 || off != 1 {
		t.Fatalf("watcher saw online=%d offline=%d, want 2/1", on, off)
	}
	if w.seen["alice"].IsZero() {
		t.Fatal("eviction should stamp lastSeen for the old owner")
	}

	r.Deregister("c1")
	if r.Online("alice") || r.Online("mallory") {
		t.Fatal("nobody should stay online after the connection deregisters")
	}
}

func TestRegistry_RebindKeepsOldOwnerWithOtherHandles(t *testing.T) {
	r := NewRegistry()
	w := newRecordingWatcher()
	r.Watch(w)

	r.Register(handleFor("alice", "c1"))
	r.Register(handleFor("alice", "c2"))
	r.Register(handleFor("mallory", "c1"))

	if !r.Online("alice") {
		t.Fatal("alice keeps her other handle through the rebind")
	}
	if got := len(r.HandlesFor("alice")); got != 1 {
		t.Fatalf("alice owns %d handles, want 1", got)
	}
	if _, off := w.counts(); off != 0 {
		t.Fatal("no offline while the old owner has a handle left")
	}
}

func TestRegistry_HandleByConn(t *testing.T) {
	r := NewRegistry()
	r.Register(handleFor("carol", "c9"))

	h, ok := r.HandleByConn("c9")
	if !ok || h.UserID != "carol" {
		t.Fatalf("HandleByConn = %v/%v, want carol handle", h, ok)
	}
	if _, ok := r.HandleByConn("missing"); ok {
		t.Fatal("missing conn must not resolve")
	}
}
