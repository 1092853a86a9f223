package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

func TestMessageRouter_SendFanout(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore(), time.Minute)

	senderPhone := connect(hub, "doc1", "d-phone")
	senderTab := connect(hub, "doc1", "d-tablet")
	recvPhone := connect(hub, "pat1", "p-phone")
	recvLaptop := connect(hub, "pat1", "p-laptop")

	msg, err := hub.Router.Send(ctx, "doc1", "pat1", "d-phone", "take your meds at 9am", domain.MessageText)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID == "" || msg.RoomID != domain.RoomIDFor("doc1", "pat1") {
		t.Fatalf("unexpected message %+v", msg)
	}

	// every receiver device gets the live event
	for name, fc := range map[string]*fakeConn{"recv phone": recvPhone, "recv laptop": recvLaptop} {
		evs := fc.events()
		if len(evs) != 1 || evs[0]["type"] != "new_message" {
			t.Fatalf("%s events = %v, want one new_message", name, fc.eventTypes())
		}
	}
	// the sender's other device gets the echo, the source handle does not
	if got := senderTab.eventTypes(); len(got) != 1 || got[0] != "new_message" {
		t.Fatalf("sender tablet events = %v, want one new_message echo", got)
	}
	if senderPhone.count() != 0 {
		t.Fatalf("source handle got %d fan-out frames, want 0", senderPhone.count())
	}
}

func TestMessageRouter_SendValidation(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore(), time.Minute)
	connect(hub, "pat1", "p1")

	tests := []struct {
		name     string
		sender   domain.UserID
		receiver domain.UserID
		content  string
		kind     domain.MessageKind
	}{
		{"empty content", "doc1", "pat1", "   ", domain.MessageText},
		{"bad kind", "doc1", "pat1", "hi", "sticker"},
		{"self message", "doc1", "doc1", "hi", domain.MessageText},
		{"empty sender", "", "pat1", "hi", domain.MessageText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hub.Router.Send(ctx, tt.sender, tt.receiver, "c0", tt.content, tt.kind)
			if !errors.Is(err, core.ErrInvalidPayload) {
				t.Fatalf("err = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestMessageRouter_UpstreamFailureAbortsFanout(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failCreateMsg = true
	hub := newTestHub(store, time.Minute)

	recv := connect(hub, "pat1", "p1")

	_, err := hub.Router.Send(ctx, "doc1", "pat1", "c0", "hello", domain.MessageText)
	if !errors.Is(err, core.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if recv.count() != 0 {
		t.Fatalf("receiver observed %d frames for unpersisted data, want 0", recv.count())
	}
}

func TestMessageRouter_OfflineNotificationQueue(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore(), time.Minute)
	connect(hub, "doc1", "d1")

	// pat1 is offline: three sends queue three notifications
	for _, text := range []string{"one", "two", "three"} {
		if _, err := hub.Router.Send(ctx, "doc1", "pat1", "d1", text, domain.MessageText); err != nil {
			t.Fatalf("Send %q: %v", text, err)
		}
	}

	recv := connect(hub, "pat1", "p1")

	evs := recv.events()
	if len(evs) != 3 {
		t.Fatalf("flushed %d notifications, want 3 (%v)", len(evs), recv.eventTypes())
	}
	want := []string{"one", "two", "three"}
	for i, ev := range evs {
		if ev["type"] != "message_notification" {
			t.Fatalf("event %d type = %v, want message_notification", i, ev["type"])
		}
		m := ev["message"].(map[string]any)
		if m["content"] != want[i] {
			t.Fatalf("notification %d content = %v, want %q (order must be preserved)", i, m["content"], want[i])
		}
	}
}

func TestMessageRouter_Edit(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	hub := newTestHub(store, time.Minute)
	doc := connect(hub, "doc1", "d1")
	pat := connect(hub, "pat1", "p1")

	msg, err := hub.Router.Send(ctx, "doc1", "pat1", "d1", "original", domain.MessageText)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if _, err := hub.Router.Edit(ctx, msg.ID, "hacked", "pat1"); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("edit by non-sender err = %v, want ErrForbidden", err)
	}
	if store.content(msg.ID) != "original" {
		t.Fatal("forbidden edit must leave content unchanged")
	}

	edited, err := hub.Router.Edit(ctx, msg.ID, "corrected", "doc1")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.EditedAt == nil || edited.Content != "corrected" {
		t.Fatalf("edit result %+v", edited)
	}
	if store.content(msg.ID) != "corrected" {
		t.Fatal("edit not persisted")
	}

	// both participants' handles see message_edited
	for name, fc := range map[string]*fakeConn{"doc": doc, "pat": pat} {
		found := false
		for _, typ := range fc.eventTypes() {
			if typ == "message_edited" {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s never saw message_edited (%v)", name, fc.eventTypes())
		}
	}

	if _, err := hub.Router.Edit(ctx, "missing", "x", "doc1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("edit unknown err = %v, want ErrNotFound", err)
	}
}

func TestMessageRouter_DeleteLifecycle(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore(), time.Minute)
	connect(hub, "doc1", "d1")

	msg, err := hub.Router.Send(ctx, "doc1", "pat1", "d1", "oops", domain.MessageText)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := hub.Router.Delete(ctx, msg.ID, "pat1"); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("delete by non-sender err = %v, want ErrForbidden", err)
	}
	if err := hub.Router.Delete(ctx, msg.ID, "doc1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	msgs, err := hub.Router.RoomMessages(ctx, msg.RoomID, "doc1")
	if err != nil {
		t.Fatalf("RoomMessages: %v", err)
	}
	for _, m := range msgs {
		if m.ID == msg.ID {
			t.Fatal("deleted message still visible in room reads")
		}
	}

	// deletion is logical: a repeat delete resolves to not-found, consistently
	if err := hub.Router.Delete(ctx, msg.ID, "doc1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := hub.Router.Edit(ctx, msg.ID, "late", "doc1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("edit after delete err = %v, want ErrNotFound", err)
	}
}

func TestMessageRouter_MarkRead(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore(), time.Minute)
	doc := connect(hub, "doc1", "d1")
	pat := connect(hub, "pat1", "p1")

	msg, err := hub.Router.Send(ctx, "doc1", "pat1", "d1", "hello", domain.MessageText)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := hub.Router.MarkRead(ctx, msg.ID, "doc1"); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("mark read by sender err = %v, want ErrForbidden", err)
	}

	if err := hub.Router.MarkRead(ctx, msg.ID, "pat1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	docEvents := doc.eventTypes()
	if docEvents[len(docEvents)-1] != "message_read" {
		t.Fatalf("sender events = %v, want trailing message_read", docEvents)
	}

	// read receipts go to the sender only
	for _, typ := range pat.eventTypes() {
		if typ == "message_read" {
			t.Fatal("receiver must not get its own read receipt")
		}
	}

	// idempotent: a second mark is a silent no-op
	before := doc.count()
	if err := hub.Router.MarkRead(ctx, msg.ID, "pat1"); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if doc.count() != before {
		t.Fatal("repeated mark read must not fan out again")
	}
}

func TestMessageRouter_RoomMessagesParticipantsOnly(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore(), time.Minute)
	connect(hub, "doc1", "d1")

	msg, err := hub.Router.Send(ctx, "doc1", "pat1", "d1", "confidential diagnosis", domain.MessageText)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// the room id is derivable, so a third party can guess it
	if _, err := hub.Router.RoomMessages(ctx, msg.RoomID, "doc2"); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("history read by non-participant err = %v, want ErrForbidden", err)
	}

	msgs, err := hub.Router.RoomMessages(ctx, msg.RoomID, "pat1")
	if err != nil {
		t.Fatalf("RoomMessages as participant: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "confidential diagnosis" {
		t.Fatalf("participant read = %+v, want the one message", msgs)
	}

	if _, err := hub.Router.RoomMessages(ctx, "nope_room", "doc1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown room err = %v, want ErrNotFound", err)
	}
}

func TestMessageRouter_EditRevalidatesUnderRoomLock(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	hub := newTestHub(store, time.Minute)
	doc := connect(hub, "doc1", "d-tablet")
	connect(hub, "pat1", "p1")

	msg, err := hub.Router.Send(ctx, "doc1", "pat1", "d1", "original", domain.MessageText)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu := hub.Router.roomLock(msg.RoomID)
	mu.Lock()
	done := make(chan error, 1)
	go func() {
		_, err := hub.Router.Edit(ctx, msg.ID, "stale edit", "doc1")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("edit completed without taking the room lock")
	case <-time.After(50 * time.Millisecond):
	}

	// the message goes away while the edit waits its turn
	if err := store.DeleteMessage(ctx, msg.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	mu.Unlock()

	if err := <-done; !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("edit over deleted message err = %v, want ErrNotFound", err)
	}
	for _, typ := range doc.eventTypes() {
		if typ == "message_edited" {
			t.Fatal("message_edited fanned out for a deleted message")
		}
	}
	if store.content(msg.ID) == "stale edit" {
		t.Fatal("stale edit persisted over a deleted message")
	}
}

func TestMessageRouter_FIFOPerRoom(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeStore(), time.Minute)
	connect(hub, "doc1", "d1")
	recv := connect(hub, "pat1", "p1")

	want := []string{"a", "b", "c", "d", "e"}
	for _, text := range want {
		if _, err := hub.Router.Send(ctx, "doc1", "pat1", "d1", text, domain.MessageText); err != nil {
			t.Fatalf("Send %q: %v", text, err)
		}
	}

	evs := recv.events()
	if len(evs) != len(want) {
		t.Fatalf("delivered %d events, want %d", len(evs), len(want))
	}
	for i, ev := range evs {
		m := ev["message"].(map[string]any)
		if m["content"] != want[i] {
			t.Fatalf("delivery order broken at %d: got %v, want %q", i, m["content"], want[i])
		}
	}
}
