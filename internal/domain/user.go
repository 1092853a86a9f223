// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"
)

const MaxUserIDLen = 36

var ErrUserIDEmpty = errors.New("user id empty")

type UserID string

// PresenceStatus is derived from live connection count, never set directly.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

type PresenceRecord struct {
	UserID     UserID         `json:"userId"`
	Status     PresenceStatus `json:"status"`
	LastSeenAt time.Time      `json:"lastSeenAt,omitempty"`
}
