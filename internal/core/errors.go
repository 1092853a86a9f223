package core

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrCalleeOffline     = errors.New("callee offline")
	ErrCallAlreadyActive = errors.New("call already active")
	ErrUpstream          = errors.New("upstream failure")
	ErrBackpressure      = errors.New("backpressure")
)

// ErrorCode maps an error to the wire code sent in error acks.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidPayload):
		return "bad_payload"
	case errors.Is(err, ErrCalleeOffline):
		return "callee_offline"
	case errors.Is(err, ErrCallAlreadyActive):
		return "call_already_active"
	case errors.Is(err, ErrUpstream):
		return "upstream_failure"
	default:
		return "internal"
	}
}
