package app

import "github.com/GateWayConnection/meds-healthcare-sub000/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickConnection
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(h *core.ConnectionHandle) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(h *core.ConnectionHandle) BackpressureAction {
	return KickConnection
}
