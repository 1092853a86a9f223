package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

// fakeConn records every frame it is handed. full simulates a consumer
// whose send buffer never drains.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("connection closed")
	}
	if f.full {
		return core.ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// events decodes recorded frames into generic maps for assertions.
func (f *fakeConn) events() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) eventTypes() []string {
	evs := f.events()
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		t, _ := e["type"].(string)
		out = append(out, t)
	}
	return out
}

// fakeStore is an in-memory DataStore with per-operation failure switches.
type fakeStore struct {
	mu      sync.Mutex
	rooms   map[domain.RoomID]*domain.Room
	msgs    map[domain.MessageID]*domain.Message
	byRoom  map[domain.RoomID][]domain.MessageID
	nextID  int
	touches int

	failCreateRoom bool
	failCreateMsg  bool
	failUpdate     bool
	failTouch      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:  make(map[domain.RoomID]*domain.Room),
		msgs:   make(map[domain.MessageID]*domain.Message),
		byRoom: make(map[domain.RoomID][]domain.MessageID),
	}
}

func (s *fakeStore) GetOrCreateRoom(_ context.Context, a, b domain.UserID) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateRoom {
		return nil, fmt.Errorf("boom")
	}
	id := domain.RoomIDFor(a, b)
	if r, ok := s.rooms[id]; ok {
		return r, nil
	}
	r := &domain.Room{ID: id, ParticipantIDs: []domain.UserID{a, b}}
	s.rooms[id] = r
	return r, nil
}

func (s *fakeStore) TouchRoom(_ context.Context, roomID domain.RoomID, _ domain.MessageID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTouch {
		return fmt.Errorf("boom")
	}
	s.touches++
	return nil
}

func (s *fakeStore) ListRoomMessages(_ context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byRoom[roomID]
	out := make([]*domain.Message, 0, len(ids))
	for _, id := range ids {
		cp := *s.msgs[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) CreateMessage(_ context.Context, m *domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateMsg {
		return nil, fmt.Errorf("boom")
	}
	s.nextID++
	stored := *m
	stored.ID = domain.MessageID(fmt.Sprintf("m%d", s.nextID))
	s.msgs[stored.ID] = &stored
	s.byRoom[stored.RoomID] = append(s.byRoom[stored.RoomID], stored.ID)
	cp := stored
	return &cp, nil
}

func (s *fakeStore) GetMessage(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) UpdateMessage(_ context.Context, id domain.MessageID, content string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return fmt.Errorf("boom")
	}
	m, ok := s.msgs[id]
	if !ok {
		return core.ErrNotFound
	}
	m.Content = content
	m.EditedAt = &editedAt
	return nil
}

func (s *fakeStore) DeleteMessage(_ context.Context, id domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return core.ErrNotFound
	}
	m.IsDeleted = true
	return nil
}

func (s *fakeStore) MarkMessageRead(_ context.Context, id domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return core.ErrNotFound
	}
	m.IsRead = true
	return nil
}

func (s *fakeStore) content(id domain.MessageID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.msgs[id]; ok {
		return m.Content
	}
	return ""
}

func newTestHub(store core.DataStore, ringTimeout time.Duration) *SignalingHub {
	return NewSignalingHub(store, SimplePolicy{}, ringTimeout)
}

// connect registers a fake connection for a user and returns it.
func connect(hub *SignalingHub, u domain.UserID, id core.ConnID) *fakeConn {
	fc := &fakeConn{}
	hub.Registry.Register(&core.ConnectionHandle{
		ID:          id,
		UserID:      u,
		ConnectedAt: time.Now(),
		Conn:        fc,
	})
	return fc
}
