package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/app"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

func (ctl *Controller) handleJoinUser(c *clientConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		UserID domain.UserID `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		ctl.errorAck(c, "bad_payload")
		return
	}
	// a socket keeps its first identity for its lifetime
	if cur := c.user(); cur != "" && cur != p.UserID {
		ctl.errorAck(c, "forbidden")
		return
	}

	c.bindUser(p.UserID)
	ctl.Hub.Registry.Register(ctl.handle(c, p.UserID))

	log.Info().Str("module", "signal").Str("conn", string(c.id)).Str("user", string(p.UserID)).Msg("user joined")
	ctl.sendJSON(c, struct {
		Type   string        `json:"type"`
		UserID domain.UserID `json:"userId"`
	}{Type: "user_joined", UserID: p.UserID})
}

// handleJoinRoom scopes delivery: the joiner starts watching the other
// participant's presence and gets an immediate snapshot of it.
func (ctl *Controller) handleJoinRoom(c *clientConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
		UserID domain.UserID `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" {
		ctl.errorAck(c, "forbidden")
		return
	}

	if room, ok := ctl.Hub.Rooms.Get(p.RoomID); ok {
		if other, found := room.Other(u); found {
			ctl.Hub.Presence.Subscribe(u, other)
			rec := ctl.Hub.Registry.Presence(other)
			if rec.Status == domain.PresenceOnline {
				ctl.sendJSON(c, app.UserOnlineEvent{Type: "user_online", UserID: other})
			} else {
				ctl.sendJSON(c, app.UserOfflineEvent{Type: "user_offline", UserID: other, LastSeenAt: rec.LastSeenAt})
			}
		}
	}

	ctl.sendJSON(c, struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
	}{Type: "room_joined", RoomID: p.RoomID})
}

// handleTyping relays the indicator to the other participant. Not persisted.
func (ctl *Controller) handleTyping(c *clientConn, data []byte) {
	var p struct {
		Type     string        `json:"type"`
		RoomID   domain.RoomID `json:"roomId"`
		UserID   domain.UserID `json:"userId"`
		IsTyping bool          `json:"isTyping"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" {
		ctl.errorAck(c, "forbidden")
		return
	}

	room, ok := ctl.Hub.Rooms.Get(p.RoomID)
	if !ok || !room.Has(u) {
		ctl.errorAck(c, "not_found")
		return
	}
	other, _ := room.Other(u)
	ctl.Hub.Emit(ctl.Hub.Registry.HandlesFor(other), app.TypingEvent{Type: "typing", RoomID: p.RoomID, UserID: u, IsTyping: p.IsTyping})
}
