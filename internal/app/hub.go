package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
)

// Emitter fans an event out to a set of connection handles.
type Emitter interface {
	Emit(handles []*core.ConnectionHandle, v any)
}

// SignalingHub is the one context object holding every coordinator
// component. Constructed once at process start and injected everywhere;
// there is no module-level connection state.
type SignalingHub struct {
	Registry *Registry
	Rooms    *RoomDirectory
	Router   *MessageRouter
	Calls    *CallCoordinator
	Presence *PresencePublisher
	Policy   Policy
}

func NewSignalingHub(store core.DataStore, policy Policy, ringTimeout time.Duration) *SignalingHub {
	h := &SignalingHub{
		Registry: NewRegistry(),
		Policy:   policy,
	}
	h.Rooms = NewRoomDirectory(store)
	h.Router = NewMessageRouter(store, h.Registry, h.Rooms, h)
	h.Calls = NewCallCoordinator(h.Registry, h, ringTimeout)
	h.Presence = NewPresencePublisher(h.Registry, h)

	h.Registry.Watch(h.Presence)
	h.Registry.Watch(h.Calls)
	h.Registry.Watch(h.Router)
	return h
}

// Emit marshals v once and delivers it to every handle with a non-blocking
// send. Slow consumers are handed to the backpressure policy.
func (h *SignalingHub) Emit(handles []*core.ConnectionHandle, v any) {
	if len(handles) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("emit marshal")
		return
	}
	for _, handle := range handles {
		if err := handle.Conn.TrySend(core.Frame(b)); err != nil {
			log.Warn().Str("module", "app.hub").Str("conn", string(handle.ID)).Err(err).Msg("emit dropped")
			if h.Policy != nil && h.Policy.OnBackPressure(handle) == KickConnection {
				handle.Conn.Close()
				h.Registry.Deregister(handle.ID)
			}
		}
	}
}
