package app

import (
	"encoding/json"
	"time"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

// Outbound event types. One struct per variant so fan-out and the offline
// notification queue carry typed values, not raw maps.

type NewMessageEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

func newMessageEvent(m *domain.Message) NewMessageEvent {
	return NewMessageEvent{Type: "new_message", Message: m}
}

type MessageNotificationEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

func messageNotificationEvent(m *domain.Message) MessageNotificationEvent {
	return MessageNotificationEvent{Type: "message_notification", Message: m}
}

type MessageEditedEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

type MessageDeletedEvent struct {
	Type      string           `json:"type"`
	MessageID domain.MessageID `json:"messageId"`
	RoomID    domain.RoomID    `json:"roomId"`
}

type MessageReadEvent struct {
	Type      string           `json:"type"`
	MessageID domain.MessageID `json:"messageId"`
	RoomID    domain.RoomID    `json:"roomId"`
	ReaderID  domain.UserID    `json:"readerId"`
}

type UserOnlineEvent struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type UserOfflineEvent struct {
	Type       string        `json:"type"`
	UserID     domain.UserID `json:"userId"`
	LastSeenAt time.Time     `json:"lastSeenAt"`
}

type IncomingCallEvent struct {
	Type     string          `json:"type"`
	CallID   domain.CallID   `json:"callId"`
	CallerID domain.UserID   `json:"callerId"`
	Kind     domain.CallKind `json:"callKind"`
}

type CallResponseEvent struct {
	Type     string        `json:"type"`
	CallID   domain.CallID `json:"callId"`
	Accepted bool          `json:"accepted"`
}

type CallSignalEvent struct {
	Type   string          `json:"type"`
	CallID domain.CallID   `json:"callId"`
	Signal json.RawMessage `json:"signal"`
}

type CallEndedEvent struct {
	Type   string           `json:"type"`
	CallID domain.CallID    `json:"callId"`
	Reason domain.EndReason `json:"reason"`
}

type CallFailedEvent struct {
	Type   string           `json:"type"`
	CallID domain.CallID    `json:"callId,omitempty"`
	Reason domain.EndReason `json:"reason"`
}

type TypingEvent struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	IsTyping bool          `json:"isTyping"`
}
