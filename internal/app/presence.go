package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

// PresencePublisher re-emits registry presence transitions to users that
// expressed interest in the subject (an open chat room with them). Purely
// reactive; no state beyond the subscription table.
type PresencePublisher struct {
	mu sync.RWMutex
	// target -> set of watcher users
	watchersOf map[domain.UserID]map[domain.UserID]struct{}

	registry *Registry
	emit     Emitter
}

func NewPresencePublisher(registry *Registry, emit Emitter) *PresencePublisher {
	return &PresencePublisher{
		watchersOf: make(map[domain.UserID]map[domain.UserID]struct{}),
		registry:   registry,
		emit:       emit,
	}
}

// Subscribe registers watcher's interest in target's presence transitions.
func (p *PresencePublisher) Subscribe(watcher, target domain.UserID) {
	if watcher == "" || target == "" || watcher == target {
		return
	}
	p.mu.Lock()
	set, ok := p.watchersOf[target]
	if !ok {
		set = make(map[domain.UserID]struct{})
		p.watchersOf[target] = set
	}
	set[watcher] = struct{}{}
	p.mu.Unlock()
	log.Debug().Str("module", "app.presence").Str("watcher", string(watcher)).Str("target", string(target)).Msg("subscribed")
}

// Unsubscribe drops one interest edge.
func (p *PresencePublisher) Unsubscribe(watcher, target domain.UserID) {
	p.mu.Lock()
	if set, ok := p.watchersOf[target]; ok {
		delete(set, watcher)
		if len(set) == 0 {
			delete(p.watchersOf, target)
		}
	}
	p.mu.Unlock()
}

func (p *PresencePublisher) watchers(target domain.UserID) []domain.UserID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.UserID, 0, len(p.watchersOf[target]))
	for w := range p.watchersOf[target] {
		out = append(out, w)
	}
	return out
}

func (p *PresencePublisher) UserOnline(id domain.UserID) {
	ev := UserOnlineEvent{Type: "user_online", UserID: id}
	for _, w := range p.watchers(id) {
		p.emit.Emit(p.registry.HandlesFor(w), ev)
	}
}

func (p *PresencePublisher) UserOffline(id domain.UserID, lastSeen time.Time) {
	ev := UserOfflineEvent{Type: "user_offline", UserID: id, LastSeenAt: lastSeen}
	for _, w := range p.watchers(id) {
		p.emit.Emit(p.registry.HandlesFor(w), ev)
	}
	// a user going away stops watching everyone else
	p.mu.Lock()
	for target, set := range p.watchersOf {
		delete(set, id)
		if len(set) == 0 {
			delete(p.watchersOf, target)
		}
	}
	p.mu.Unlock()
}
