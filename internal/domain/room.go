package domain

import (
	"sort"
	"strings"
	"time"
)

type RoomID string

// RoomIDFor derives the stable room identifier for an unordered pair.
// The same two participants always resolve to the same room.
func RoomIDFor(a, b UserID) RoomID {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return RoomID(strings.Join(ids, "_"))
}

// Room is the durable conversation context between two participants.
// Rooms are never hard-deleted.
type Room struct {
	ID             RoomID    `json:"id"`
	ParticipantIDs []UserID  `json:"participantIds"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	LastMessageID  MessageID `json:"lastMessageId,omitempty"`
}

// Other returns the participant that is not u.
func (r *Room) Other(u UserID) (UserID, bool) {
	for _, p := range r.ParticipantIDs {
		if p != u {
			return p, true
		}
	}
	return "", false
}

// Has reports whether u participates in the room.
func (r *Room) Has(u UserID) bool {
	for _, p := range r.ParticipantIDs {
		if p == u {
			return true
		}
	}
	return false
}
