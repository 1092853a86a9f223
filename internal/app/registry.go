package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

// PresenceWatcher is notified when a user's live handle set transitions
// between empty and non-empty. Callbacks run outside registry locks.
type PresenceWatcher interface {
	UserOnline(id domain.UserID)
	UserOffline(id domain.UserID, lastSeen time.Time)
}

// Registry owns the ConnectionHandle lifecycle: userID -> set of live
// handles. No other component mutates handle membership.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[domain.UserID]map[core.ConnID]*core.ConnectionHandle
	byConn   map[core.ConnID]*core.ConnectionHandle
	lastSeen map[domain.UserID]time.Time

	watchers []PresenceWatcher
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[domain.UserID]map[core.ConnID]*core.ConnectionHandle),
		byConn:   make(map[core.ConnID]*core.ConnectionHandle),
		lastSeen: make(map[domain.UserID]time.Time),
	}
}

// Watch adds a presence watcher. Call during wiring, before traffic starts.
func (r *Registry) Watch(w PresenceWatcher) {
	r.watchers = append(r.watchers, w)
}

// Register adds a handle to its owner's live set. Idempotent on a duplicate
// handle. The first handle of a user emits presence-online. A known conn id
// arriving under a new user evicts the old binding first, so the previous
// owner's handle set never keeps a connection it no longer owns.
func (r *Registry) Register(h *core.ConnectionHandle) {
	r.mu.Lock()
	var evicted domain.UserID
	var evictedSeen time.Time
	if prev, ok := r.byConn[h.ID]; ok {
		if prev.UserID == h.UserID {
			r.mu.Unlock()
			return
		}
		prevSet := r.byUser[prev.UserID]
		delete(prevSet, h.ID)
		if len(prevSet) == 0 {
			delete(r.byUser, prev.UserID)
			evicted = prev.UserID
			evictedSeen = time.Now()
			r.lastSeen[prev.UserID] = evictedSeen
		}
	}
	set, ok := r.byUser[h.UserID]
	if !ok {
		set = make(map[core.ConnID]*core.ConnectionHandle)
		r.byUser[h.UserID] = set
	}
	set[h.ID] = h
	r.byConn[h.ID] = h
	first := len(set) == 1
	r.mu.Unlock()

	if evicted != "" {
		log.Info().Str("module", "app.registry").Str("user", string(evicted)).Str("conn", string(h.ID)).Msg("stale binding evicted")
		for _, w := range r.watchers {
			w.UserOffline(evicted, evictedSeen)
		}
	}
	log.Info().Str("module", "app.registry").Str("user", string(h.UserID)).Str("conn", string(h.ID)).Bool("first", first).Msg("handle registered")
	if first {
		for _, w := range r.watchers {
			w.UserOnline(h.UserID)
		}
	}
}

// Deregister removes a handle. No-op if the handle is unknown. The last
// handle of a user stamps lastSeen and emits presence-offline.
func (r *Registry) Deregister(id core.ConnID) {
	r.mu.Lock()
	h, ok := r.byConn[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byConn, id)
	set := r.byUser[h.UserID]
	delete(set, id)
	last := len(set) == 0
	var seen time.Time
	if last {
		delete(r.byUser, h.UserID)
		seen = time.Now()
		r.lastSeen[h.UserID] = seen
	}
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("user", string(h.UserID)).Str("conn", string(id)).Bool("last", last).Msg("handle deregistered")
	if last {
		for _, w := range r.watchers {
			w.UserOffline(h.UserID, seen)
		}
	}
}

// HandlesFor returns the user's current live handles, possibly empty.
func (r *Registry) HandlesFor(u domain.UserID) []*core.ConnectionHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[u]
	out := make([]*core.ConnectionHandle, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	return out
}

// HandleByConn resolves a single handle by connection id.
func (r *Registry) HandleByConn(id core.ConnID) (*core.ConnectionHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byConn[id]
	return h, ok
}

func (r *Registry) Online(u domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[u]) > 0
}

// Presence returns the derived presence record for a user.
func (r *Registry) Presence(u domain.UserID) domain.PresenceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.byUser[u]) > 0 {
		return domain.PresenceRecord{UserID: u, Status: domain.PresenceOnline}
	}
	return domain.PresenceRecord{UserID: u, Status: domain.PresenceOffline, LastSeenAt: r.lastSeen[u]}
}
