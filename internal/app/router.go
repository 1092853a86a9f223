package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

// MessageRouter owns message mutation rules. Storage is delegated to the
// data API; nothing is fanned out for data that failed to persist.
//
// Per-room sends are serialized on a per-room lock held across
// persist+fanout, which keeps delivery FIFO per room per handle.
type MessageRouter struct {
	store    core.DataStore
	registry *Registry
	rooms    *RoomDirectory
	emit     Emitter

	lockMu    sync.Mutex
	roomLocks map[domain.RoomID]*sync.Mutex

	pendMu  sync.Mutex
	pending map[domain.UserID][]MessageNotificationEvent
}

func NewMessageRouter(store core.DataStore, registry *Registry, rooms *RoomDirectory, emit Emitter) *MessageRouter {
	return &MessageRouter{
		store:     store,
		registry:  registry,
		rooms:     rooms,
		emit:      emit,
		roomLocks: make(map[domain.RoomID]*sync.Mutex),
		pending:   make(map[domain.UserID][]MessageNotificationEvent),
	}
}

func (r *MessageRouter) roomLock(id domain.RoomID) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	mu, ok := r.roomLocks[id]
	if !ok {
		mu = &sync.Mutex{}
		r.roomLocks[id] = mu
	}
	return mu
}

// Send persists a message and fans the resulting event out to every live
// handle of the receiver, echoing to the sender's other devices. sourceConn
// is the handle the request arrived on; it gets the result as a direct ack,
// not a fan-out copy.
func (r *MessageRouter) Send(ctx context.Context, senderID, receiverID domain.UserID, sourceConn core.ConnID, content string, kind domain.MessageKind) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", core.ErrInvalidPayload)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown message kind %q", core.ErrInvalidPayload, kind)
	}
	if senderID == "" || receiverID == "" || senderID == receiverID {
		return nil, fmt.Errorf("%w: bad sender/receiver pair", core.ErrInvalidPayload)
	}

	mu := r.roomLock(domain.RoomIDFor(senderID, receiverID))
	mu.Lock()
	defer mu.Unlock()

	room, err := r.rooms.GetOrCreate(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		RoomID:     room.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Kind:       kind,
		CreatedAt:  time.Now(),
	}
	stored, err := r.store.CreateMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: create message: %v", core.ErrUpstream, err)
	}

	recv := r.registry.HandlesFor(receiverID)
	if len(recv) > 0 {
		r.emit.Emit(recv, newMessageEvent(stored))
	} else {
		r.queueNotification(receiverID, messageNotificationEvent(stored))
	}

	echo := make([]*core.ConnectionHandle, 0, 2)
	for _, h := range r.registry.HandlesFor(senderID) {
		if h.ID != sourceConn {
			echo = append(echo, h)
		}
	}
	r.emit.Emit(echo, newMessageEvent(stored))

	r.rooms.RecordActivity(ctx, room.ID, stored)

	log.Info().Str("module", "app.router").Str("room", string(room.ID)).Str("msg", string(stored.ID)).Int("delivered", len(recv)).Msg("message sent")
	return stored, nil
}

// Edit is allowed only for the original sender on a live message.
// Mutations serialize on the room lock; the first fetch only resolves which
// room that is, the state checks run on a re-fetch under the lock.
func (r *MessageRouter) Edit(ctx context.Context, id domain.MessageID, newContent string, requesterID domain.UserID) (*domain.Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, fmt.Errorf("%w: empty content", core.ErrInvalidPayload)
	}
	msg, err := r.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	mu := r.roomLock(msg.RoomID)
	mu.Lock()
	defer mu.Unlock()

	msg, err = r.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, fmt.Errorf("%w: only the sender may edit", core.ErrForbidden)
	}

	now := time.Now()
	if err := r.store.UpdateMessage(ctx, id, newContent, now); err != nil {
		return nil, fmt.Errorf("%w: update message: %v", core.ErrUpstream, err)
	}
	msg.Content = newContent
	msg.EditedAt = &now

	r.fanToParticipants(msg, MessageEditedEvent{Type: "message_edited", Message: msg})
	return msg, nil
}

// Delete is logical: the message disappears from reads but the id stays a
// valid historical reference.
func (r *MessageRouter) Delete(ctx context.Context, id domain.MessageID, requesterID domain.UserID) error {
	msg, err := r.fetch(ctx, id)
	if err != nil {
		return err
	}

	mu := r.roomLock(msg.RoomID)
	mu.Lock()
	defer mu.Unlock()

	msg, err = r.fetch(ctx, id)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return fmt.Errorf("%w: only the sender may delete", core.ErrForbidden)
	}
	if err := r.store.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("%w: delete message: %v", core.ErrUpstream, err)
	}
	msg.IsDeleted = true

	r.fanToParticipants(msg, MessageDeletedEvent{Type: "message_deleted", MessageID: msg.ID, RoomID: msg.RoomID})
	return nil
}

// MarkRead is allowed only for the receiver. Re-reading an already-read
// message is a silent no-op.
func (r *MessageRouter) MarkRead(ctx context.Context, id domain.MessageID, requesterID domain.UserID) error {
	msg, err := r.fetch(ctx, id)
	if err != nil {
		return err
	}

	mu := r.roomLock(msg.RoomID)
	mu.Lock()
	defer mu.Unlock()

	msg, err = r.fetch(ctx, id)
	if err != nil {
		return err
	}
	if msg.ReceiverID != requesterID {
		return fmt.Errorf("%w: only the receiver may mark read", core.ErrForbidden)
	}
	if msg.IsRead {
		return nil
	}
	if err := r.store.MarkMessageRead(ctx, id); err != nil {
		return fmt.Errorf("%w: mark read: %v", core.ErrUpstream, err)
	}
	msg.IsRead = true

	ev := MessageReadEvent{Type: "message_read", MessageID: msg.ID, RoomID: msg.RoomID, ReaderID: requesterID}
	r.emit.Emit(r.registry.HandlesFor(msg.SenderID), ev)
	return nil
}

// RoomMessages lists the room's messages with deleted ones excluded. Only a
// room participant may read the history.
func (r *MessageRouter) RoomMessages(ctx context.Context, roomID domain.RoomID, requesterID domain.UserID) ([]*domain.Message, error) {
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return nil, core.ErrNotFound
	}
	if !room.Has(requesterID) {
		return nil, fmt.Errorf("%w: not a room participant", core.ErrForbidden)
	}
	msgs, err := r.store.ListRoomMessages(ctx, roomID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%w: list room messages: %v", core.ErrUpstream, err)
	}
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsDeleted {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MessageRouter) fetch(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	msg, err := r.store.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get message: %v", core.ErrUpstream, err)
	}
	if msg.IsDeleted {
		return nil, core.ErrNotFound
	}
	return msg, nil
}

func (r *MessageRouter) fanToParticipants(msg *domain.Message, ev any) {
	handles := r.registry.HandlesFor(msg.SenderID)
	handles = append(handles, r.registry.HandlesFor(msg.ReceiverID)...)
	r.emit.Emit(handles, ev)
}

func (r *MessageRouter) queueNotification(u domain.UserID, ev MessageNotificationEvent) {
	r.pendMu.Lock()
	r.pending[u] = append(r.pending[u], ev)
	r.pendMu.Unlock()
}

// UserOnline flushes notifications queued while the user was offline,
// preserving send order.
func (r *MessageRouter) UserOnline(u domain.UserID) {
	r.pendMu.Lock()
	queued := r.pending[u]
	delete(r.pending, u)
	r.pendMu.Unlock()
	if len(queued) == 0 {
		return
	}
	handles := r.registry.HandlesFor(u)
	for _, ev := range queued {
		r.emit.Emit(handles, ev)
	}
	log.Info().Str("module", "app.router").Str("user", string(u)).Int("flushed", len(queued)).Msg("offline notifications flushed")
}

func (r *MessageRouter) UserOffline(domain.UserID, time.Time) {}
