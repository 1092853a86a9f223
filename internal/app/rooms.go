package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

// RoomDirectory owns Room lookup. The room id is derived from the sorted
// participant pair, so GetOrCreate is idempotent for the same pair.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
	store core.DataStore
}

func NewRoomDirectory(store core.DataStore) *RoomDirectory {
	return &RoomDirectory{
		rooms: make(map[domain.RoomID]*domain.Room),
		store: store,
	}
}

// GetOrCreate resolves the room for an unordered pair, creating it through
// the data API on first contact.
func (d *RoomDirectory) GetOrCreate(ctx context.Context, a, b domain.UserID) (*domain.Room, error) {
	if a == "" || b == "" || a == b {
		return nil, fmt.Errorf("%w: bad participant pair", core.ErrInvalidPayload)
	}
	id := domain.RoomIDFor(a, b)

	d.mu.RLock()
	room, ok := d.rooms[id]
	d.mu.RUnlock()
	if ok {
		return room, nil
	}

	created, err := d.store.GetOrCreateRoom(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: get or create room: %v", core.ErrUpstream, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if room, ok = d.rooms[id]; ok {
		return room, nil
	}
	if created.ID == "" {
		created.ID = id
	}
	d.rooms[id] = created
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room cached")
	return created, nil
}

// Get returns a cached room by id.
func (d *RoomDirectory) Get(id domain.RoomID) (*domain.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[id]
	return room, ok
}

// RecordActivity advances lastActivityAt and the last-message pointer.
// Best effort: a data API failure is logged, never returned.
func (d *RoomDirectory) RecordActivity(ctx context.Context, roomID domain.RoomID, m *domain.Message) {
	now := time.Now()
	d.mu.Lock()
	if room, ok := d.rooms[roomID]; ok {
		room.LastActivityAt = now
		room.LastMessageID = m.ID
	}
	d.mu.Unlock()

	if err := d.store.TouchRoom(ctx, roomID, m.ID, now); err != nil {
		log.Warn().Str("module", "app.rooms").Str("room", string(roomID)).Err(err).Msg("record activity")
	}
}
