package core

import (
	"context"
	"time"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

// Frame is a marshalled outbound event payload.
type Frame []byte

// ConnID identifies one live transport connection.
type ConnID string

// SignalConnection abstracts the client messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// ConnectionHandle binds one live connection to its owning user.
// A user may hold several handles at once (multi-device).
type ConnectionHandle struct {
	ID          ConnID
	UserID      domain.UserID
	ConnectedAt time.Time
	Conn        SignalConnection
}

// DataStore is the external data API the coordinator persists through.
// Every call is fallible; implementations return ErrNotFound for unknown
// identifiers and wrap transport/storage problems in ErrUpstream.
type DataStore interface {
	GetOrCreateRoom(ctx context.Context, a, b domain.UserID) (*domain.Room, error)
	TouchRoom(ctx context.Context, roomID domain.RoomID, lastMessageID domain.MessageID, at time.Time) error
	ListRoomMessages(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error)

	CreateMessage(ctx context.Context, m *domain.Message) (*domain.Message, error)
	GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	UpdateMessage(ctx context.Context, id domain.MessageID, content string, editedAt time.Time) error
	DeleteMessage(ctx context.Context, id domain.MessageID) error
	MarkMessageRead(ctx context.Context, id domain.MessageID) error
}
