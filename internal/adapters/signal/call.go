package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

func (ctl *Controller) handleInitiateCall(c *clientConn, data []byte) {
	var p struct {
		Type     string          `json:"type"`
		CallerID domain.UserID   `json:"callerId"`
		CalleeID domain.UserID   `json:"receiverId"`
		Kind     domain.CallKind `json:"callType"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" || p.CallerID != u {
		ctl.errorAck(c, "forbidden")
		return
	}

	sess, err := ctl.Hub.Calls.Initiate(p.CallerID, p.CalleeID, p.Kind, c.id)
	if err != nil {
		log.Warn().Str("module", "signal").Str("caller", string(u)).Err(err).Msg("initiate call")
		if errors.Is(err, core.ErrCalleeOffline) {
			ctl.sendJSON(c, struct {
				Type   string           `json:"type"`
				Reason domain.EndReason `json:"reason"`
			}{Type: "call_failed", Reason: domain.EndCalleeOffline})
			return
		}
		ctl.errorAck(c, core.ErrorCode(err))
		return
	}
	ctl.sendJSON(c, struct {
		Type string              `json:"type"`
		Call *domain.CallSession `json:"call"`
	}{Type: "call_initiated", Call: sess})
}

func (ctl *Controller) handleCallResponse(c *clientConn, data []byte) {
	var p struct {
		Type     string        `json:"type"`
		CallID   domain.CallID `json:"callId"`
		Accepted bool          `json:"accepted"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" {
		ctl.errorAck(c, "forbidden")
		return
	}
	if err := ctl.Hub.Calls.Respond(p.CallID, u, p.Accepted, c.id); err != nil {
		ctl.errorAck(c, core.ErrorCode(err))
	}
}

func (ctl *Controller) handleCallSignal(c *clientConn, data []byte) {
	var p struct {
		Type   string          `json:"type"`
		CallID domain.CallID   `json:"callId"`
		Signal json.RawMessage `json:"signal"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || len(p.Signal) == 0 {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" {
		ctl.errorAck(c, "forbidden")
		return
	}
	if err := ctl.Hub.Calls.RelaySignal(p.CallID, u, p.Signal); err != nil {
		ctl.errorAck(c, core.ErrorCode(err))
	}
}

func (ctl *Controller) handleConfirmActive(c *clientConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		CallID domain.CallID `json:"callId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" {
		ctl.errorAck(c, "forbidden")
		return
	}
	if err := ctl.Hub.Calls.ConfirmActive(p.CallID, u); err != nil {
		ctl.errorAck(c, core.ErrorCode(err))
	}
}

func (ctl *Controller) handleEndCall(c *clientConn, data []byte) {
	var p struct {
		Type   string           `json:"type"`
		CallID domain.CallID    `json:"callId"`
		Reason domain.EndReason `json:"reason"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.errorAck(c, "bad_payload")
		return
	}
	u := c.user()
	if u == "" {
		ctl.errorAck(c, "forbidden")
		return
	}
	if err := ctl.Hub.Calls.End(p.CallID, u, p.Reason); err != nil {
		ctl.errorAck(c, core.ErrorCode(err))
	}
}
