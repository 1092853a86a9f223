package domain

import "time"

type MessageID string

type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessageVoice MessageKind = "voice"
	MessageVideo MessageKind = "video"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageText, MessageImage, MessageVoice, MessageVideo:
		return true
	}
	return false
}

// Message is owned by the message router; storage lives in the data API.
// ID, RoomID, SenderID and CreatedAt are immutable once created.
type Message struct {
	ID         MessageID   `json:"id"`
	RoomID     RoomID      `json:"roomId"`
	SenderID   UserID      `json:"senderId"`
	ReceiverID UserID      `json:"receiverId"`
	Content    string      `json:"content"`
	Kind       MessageKind `json:"kind"`
	CreatedAt  time.Time   `json:"createdAt"`
	EditedAt   *time.Time  `json:"editedAt,omitempty"`
	IsRead     bool        `json:"isRead"`
	IsDeleted  bool        `json:"isDeleted"`
}
