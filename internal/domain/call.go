package domain

import (
	"sort"
	"strings"
	"time"
)

type CallID string

type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

func (k CallKind) Valid() bool {
	return k == CallAudio || k == CallVideo
}

type CallState string

const (
	CallRinging    CallState = "ringing"
	CallConnecting CallState = "connecting"
	CallActive     CallState = "active"
	CallEnded      CallState = "ended"
)

type EndReason string

const (
	EndCompleted     EndReason = "completed"
	EndDeclined      EndReason = "declined"
	EndTimedOut      EndReason = "timeout"
	EndFailed        EndReason = "failed"
	EndCalleeOffline EndReason = "offline"
)

// PairKey identifies the unordered caller/callee pair. At most one
// non-terminal call session may exist per key.
func PairKey(a, b UserID) string {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// CallSession tracks one call attempt from initiation to termination.
// Transitions go exclusively through the call coordinator; CallEnded is final.
type CallSession struct {
	ID          CallID     `json:"id"`
	CallerID    UserID     `json:"callerId"`
	CalleeID    UserID     `json:"calleeId"`
	Kind        CallKind   `json:"kind"`
	State       CallState  `json:"state"`
	StartedAt   time.Time  `json:"startedAt"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	EndReason   EndReason  `json:"endReason,omitempty"`
}

func (s *CallSession) Terminal() bool {
	return s.State == CallEnded
}

// HasParty reports whether u is the caller or the callee.
func (s *CallSession) HasParty(u UserID) bool {
	return u == s.CallerID || u == s.CalleeID
}

// Other returns the counterpart of u in the session.
func (s *CallSession) Other(u UserID) UserID {
	if u == s.CallerID {
		return s.CalleeID
	}
	return s.CallerID
}
