package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

func (ctl *Controller) handleSendMessage(ctx context.Context, c *clientConn, data []byte) {
	var p struct {
		Type       string             `json:"type"`
		SenderID   domain.UserID      `json:"senderId"`
		ReceiverID domain.UserID      `json:"receiverId"`
		Content    string             `json:"content"`
		Kind       domain.MessageKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" || p.SenderID != u {
		ctl.errorAck(c, "forbidden")
		return
	}
	if !ctl.limiter.Allow(u) {
		ctl.errorAck(c, "rate_limited")
		return
	}

	msg, err := ctl.Hub.Router.Send(ctx, p.SenderID, p.ReceiverID, c.id, p.Content, p.Kind)
	if err != nil {
		log.Warn().Str("module", "signal").Str("sender", string(u)).Err(err).Msg("send message")
		ctl.errorAck(c, core.ErrorCode(err))
		return
	}
	ctl.sendJSON(c, struct {
		Type    string          `json:"type"`
		Message *domain.Message `json:"message"`
	}{Type: "message_sent", Message: msg})
}

func (ctl *Controller) handleEditMessage(ctx context.Context, c *clientConn, data []byte) {
	var p struct {
		Type      string           `json:"type"`
		MessageID domain.MessageID `json:"messageId"`
		Content   string           `json:"content"`
		UserID    domain.UserID    `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" || p.UserID != u {
		ctl.errorAck(c, "forbidden")
		return
	}
	if _, err := ctl.Hub.Router.Edit(ctx, p.MessageID, p.Content, u); err != nil {
		ctl.errorAck(c, core.ErrorCode(err))
	}
}

func (ctl *Controller) handleDeleteMessage(ctx context.Context, c *clientConn, data []byte) {
	var p struct {
		Type      string           `json:"type"`
		MessageID domain.MessageID `json:"messageId"`
		UserID    domain.UserID    `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" || p.UserID != u {
		ctl.errorAck(c, "forbidden")
		return
	}
	if err := ctl.Hub.Router.Delete(ctx, p.MessageID, u); err != nil {
		ctl.errorAck(c, core.ErrorCode(err))
	}
}

func (ctl *Controller) handleMarkRead(ctx context.Context, c *clientConn, data []byte) {
	var p struct {
		Type      string           `json:"type"`
		MessageID domain.MessageID `json:"messageId"`
		UserID    domain.UserID    `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" || p.UserID != u {
		ctl.errorAck(c, "forbidden")
		return
	}
	if err := ctl.Hub.Router.MarkRead(ctx, p.MessageID, u); err != nil {
		ctl.errorAck(c, core.ErrorCode(err))
	}
}

func (ctl *Controller) handleRoomMessages(ctx context.Context, c *clientConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
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
	msgs, err := ctl.Hub.Router.RoomMessages(ctx, p.RoomID, u)
	if err != nil {
		ctl.errorAck(c, core.ErrorCode(err))
		return
	}
	ctl.sendJSON(c, struct {
		Type     string            `json:"type"`
		RoomID   domain.RoomID     `json:"roomId"`
		Messages []*domain.Message `json:"messages"`
	}{Type: "room_messages", RoomID: p.RoomID, Messages: msgs})
}
