package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handlePing(c *clientConn) {
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{Type: "pong"})
}

func (ctl *Controller) sendJSON(c *clientConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// errorAck goes to the requesting handle only; nothing is fanned out for a
// rejected operation.
func (ctl *Controller) errorAck(c *clientConn, code string) {
	ctl.sendJSON(c, struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}{Type: "error", Error: code})
}
