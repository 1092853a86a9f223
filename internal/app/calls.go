package app

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

// callState pairs the session with the transport bindings the coordinator
// relays between. callerConn is bound on initiate, calleeConn on accept.
type callState struct {
	sess       *domain.CallSession
	callerConn core.ConnID
	calleeConn core.ConnID
	ringTimer  *time.Timer
}

// endedRetention keeps terminal sessions resolvable for a while, so a late
// respond or relay gets InvalidState instead of NotFound, then drops them.
const endedRetention = time.Minute

// CallCoordinator owns every CallSession transition. Transitions for one
// call are serialized on the coordinator lock; fan-out happens after the
// lock is released so a kicked slow consumer can re-enter safely.
type CallCoordinator struct {
	registry       *Registry
	emit           Emitter
	ringTimeout    time.Duration
	endedRetention time.Duration

	mu     sync.Mutex
	calls  map[domain.CallID]*callState
	byPair map[string]domain.CallID
}

func NewCallCoordinator(registry *Registry, emit Emitter, ringTimeout time.Duration) *CallCoordinator {
	return &CallCoordinator{
		registry:       registry,
		emit:           emit,
		ringTimeout:    ringTimeout,
		endedRetention: endedRetention,
		calls:          make(map[domain.CallID]*callState),
		byPair:         make(map[string]domain.CallID),
	}
}

type emission struct {
	handles []*core.ConnectionHandle
	ev      any
}

func (c *CallCoordinator) flush(out []emission) {
	for _, e := range out {
		c.emit.Emit(e.handles, e.ev)
	}
}

// Initiate starts ringing the callee on every live handle. Fails fast when
// the callee is offline or the pair already has a non-terminal session.
func (c *CallCoordinator) Initiate(callerID, calleeID domain.UserID, kind domain.CallKind, callerConn core.ConnID) (*domain.CallSession, error) {
	if callerID == "" || calleeID == "" || callerID == calleeID {
		return nil, fmt.Errorf("%w: bad caller/callee pair", core.ErrInvalidPayload)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown call kind %q", core.ErrInvalidPayload, kind)
	}
	callee := c.registry.HandlesFor(calleeID)
	if len(callee) == 0 {
		return nil, core.ErrCalleeOffline
	}

	pair := domain.PairKey(callerID, calleeID)
	c.mu.Lock()
	if id, ok := c.byPair[pair]; ok {
		if st, live := c.calls[id]; live && !st.sess.Terminal() {
			c.mu.Unlock()
			return nil, core.ErrCallAlreadyActive
		}
		delete(c.byPair, pair)
	}

	sess := &domain.CallSession{
		ID:        domain.CallID(uuid.NewString()),
		CallerID:  callerID,
		CalleeID:  calleeID,
		Kind:      kind,
		State:     domain.CallRinging,
		StartedAt: time.Now(),
	}
	st := &callState{sess: sess, callerConn: callerConn}
	st.ringTimer = time.AfterFunc(c.ringTimeout, func() { c.onRingTimeout(sess.ID) })
	c.calls[sess.ID] = st
	c.byPair[pair] = sess.ID
	snap := *sess
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(sess.ID)).Str("caller", string(callerID)).Str("callee", string(calleeID)).Str("kind", string(kind)).Msg("call initiated")
	c.emit.Emit(callee, IncomingCallEvent{Type: "incoming_call", CallID: sess.ID, CallerID: callerID, Kind: kind})
	return &snap, nil
}

// Respond resolves ringing: decline terminates, accept moves to connecting
// and binds the responding handle as the signaling endpoint.
func (c *CallCoordinator) Respond(callID domain.CallID, responderID domain.UserID, accepted bool, responderConn core.ConnID) error {
	var out []emission

	c.mu.Lock()
	st, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		return core.ErrNotFound
	}
	if !st.sess.HasParty(responderID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: not a party to the call", core.ErrForbidden)
	}
	if responderID != st.sess.CalleeID {
		c.mu.Unlock()
		return fmt.Errorf("%w: only the callee may respond", core.ErrForbidden)
	}
	if st.sess.State != domain.CallRinging {
		c.mu.Unlock()
		return fmt.Errorf("%w: respond in state %s", core.ErrInvalidState, st.sess.State)
	}

	caller := c.registry.HandlesFor(st.sess.CallerID)
	if accepted {
		st.sess.State = domain.CallConnecting
		st.calleeConn = responderConn
		st.stopRingTimer()
		out = append(out, emission{caller, CallResponseEvent{Type: "call_response", CallID: callID, Accepted: true}})
	} else {
		c.terminate(st, domain.EndDeclined)
		out = append(out, emission{caller, CallResponseEvent{Type: "call_response", CallID: callID, Accepted: false}})
	}
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Bool("accepted", accepted).Msg("call response")
	c.flush(out)
	return nil
}

// RelaySignal forwards an opaque offer/answer/candidate payload verbatim to
// the other party's bound handle. The coordinator never parses it.
func (c *CallCoordinator) RelaySignal(callID domain.CallID, fromUser domain.UserID, payload json.RawMessage) error {
	c.mu.Lock()
	st, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		return core.ErrNotFound
	}
	if !st.sess.HasParty(fromUser) {
		c.mu.Unlock()
		return fmt.Errorf("%w: not a party to the call", core.ErrForbidden)
	}
	if st.sess.State != domain.CallConnecting && st.sess.State != domain.CallActive {
		c.mu.Unlock()
		return fmt.Errorf("%w: signal in state %s", core.ErrInvalidState, st.sess.State)
	}
	target := st.calleeConn
	if fromUser == st.sess.CalleeID {
		target = st.callerConn
	}
	c.mu.Unlock()

	handle, ok := c.registry.HandleByConn(target)
	if !ok {
		return fmt.Errorf("%w: peer handle gone", core.ErrInvalidState)
	}
	c.emit.Emit([]*core.ConnectionHandle{handle}, CallSignalEvent{Type: "call_signal", CallID: callID, Signal: payload})
	return nil
}

// ConfirmActive records that media is flowing. Informational: nothing is
// gated on the active state. Confirming twice is a no-op.
func (c *CallCoordinator) ConfirmActive(callID domain.CallID, requesterID domain.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.calls[callID]
	if !ok {
		return core.ErrNotFound
	}
	if !st.sess.HasParty(requesterID) {
		return fmt.Errorf("%w: not a party to the call", core.ErrForbidden)
	}
	switch st.sess.State {
	case domain.CallActive:
		return nil
	case domain.CallConnecting:
		now := time.Now()
		st.sess.State = domain.CallActive
		st.sess.ConnectedAt = &now
		return nil
	default:
		return fmt.Errorf("%w: confirm in state %s", core.ErrInvalidState, st.sess.State)
	}
}

// End terminates from any non-terminal state; either party may end.
// Ending an already-ended call is a no-op. A hang-up always records
// completed: declined/timeout/failed are stamped by the coordinator's own
// transitions, never taken from the requester.
func (c *CallCoordinator) End(callID domain.CallID, requesterID domain.UserID, reason domain.EndReason) error {
	switch reason {
	case "", domain.EndCompleted:
		reason = domain.EndCompleted
	default:
		return fmt.Errorf("%w: end reason %q", core.ErrInvalidPayload, reason)
	}
	var out []emission

	c.mu.Lock()
	st, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		return core.ErrNotFound
	}
	if !st.sess.HasParty(requesterID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: not a party to the call", core.ErrForbidden)
	}
	if st.sess.Terminal() {
		c.mu.Unlock()
		return nil
	}
	c.terminate(st, reason)
	other := c.registry.HandlesFor(st.sess.Other(requesterID))
	out = append(out, emission{other, CallEndedEvent{Type: "call_ended", CallID: callID, Reason: reason}})
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Str("reason", string(reason)).Msg("call ended")
	c.flush(out)
	return nil
}

// Get returns a copy of the session.
func (c *CallCoordinator) Get(callID domain.CallID) (domain.CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.calls[callID]
	if !ok {
		return domain.CallSession{}, false
	}
	return *st.sess, true
}

func (c *CallCoordinator) onRingTimeout(callID domain.CallID) {
	var out []emission

	c.mu.Lock()
	st, ok := c.calls[callID]
	if !ok || st.sess.State != domain.CallRinging {
		c.mu.Unlock()
		return
	}
	c.terminate(st, domain.EndTimedOut)
	caller := c.registry.HandlesFor(st.sess.CallerID)
	out = append(out, emission{caller, CallFailedEvent{Type: "call_failed", CallID: callID, Reason: domain.EndTimedOut}})
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Msg("ringing timed out")
	c.flush(out)
}

// UserOffline fails every non-terminal call the user is party to and
// notifies the remaining side.
func (c *CallCoordinator) UserOffline(id domain.UserID, _ time.Time) {
	var out []emission

	c.mu.Lock()
	for callID, st := range c.calls {
		if st.sess.Terminal() || !st.sess.HasParty(id) {
			continue
		}
		c.terminate(st, domain.EndFailed)
		other := c.registry.HandlesFor(st.sess.Other(id))
		out = append(out, emission{other, CallFailedEvent{Type: "call_failed", CallID: callID, Reason: domain.EndFailed}})
	}
	c.mu.Unlock()

	c.flush(out)
}

func (c *CallCoordinator) UserOnline(domain.UserID) {}

// terminate must run under c.mu. Terminal states are final.
func (c *CallCoordinator) terminate(st *callState, reason domain.EndReason) {
	st.stopRingTimer()
	now := time.Now()
	st.sess.State = domain.CallEnded
	st.sess.EndReason = reason
	st.sess.EndedAt = &now
	delete(c.byPair, domain.PairKey(st.sess.CallerID, st.sess.CalleeID))

	id := st.sess.ID
	time.AfterFunc(c.endedRetention, func() { c.expire(id) })
}

// expire drops a session once its post-end retention window passes.
func (c *CallCoordinator) expire(id domain.CallID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.calls[id]; ok && st.sess.Terminal() {
		delete(c.calls, id)
	}
}

func (st *callState) stopRingTimer() {
	if st.ringTimer != nil {
		st.ringTimer.Stop()
		st.ringTimer = nil
	}
}
