package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *clientConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, c *clientConn) {
	defer log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump closing")

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.dispatch(ctx, c, data)
		}
	}
}

func (ctl *Controller) dispatch(ctx context.Context, c *clientConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.errorAck(c, "bad_payload")
		return
	}

	switch env.Type {
	case "join_user":
		ctl.handleJoinUser(c, data)
	case "join_room":
		ctl.handleJoinRoom(c, data)
	case "typing":
		ctl.handleTyping(c, data)
	case "send_message":
		ctl.handleSendMessage(ctx, c, data)
	case "edit_message":
		ctl.handleEditMessage(ctx, c, data)
	case "delete_message":
		ctl.handleDeleteMessage(ctx, c, data)
	case "mark_read":
		ctl.handleMarkRead(ctx, c, data)
	case "get_room_messages":
		ctl.handleRoomMessages(ctx, c, data)
	case "initiate_call":
		ctl.handleInitiateCall(c, data)
	case "call_response":
		ctl.handleCallResponse(c, data)
	case "call_signal":
		ctl.handleCallSignal(c, data)
	case "confirm_active":
		ctl.handleConfirmActive(c, data)
	case "end_call":
		ctl.handleEndCall(c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.errorAck(c, "unknown_type")
	}
}
