package ws

import (
	"encoding/json"
	"time"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/notify"
)

// Event types - Client → Server
const (
	EventTypePing = "ping"
)

// Event types - Server → Client
const (
	EventTypeNotification = "notification.new"
	EventTypeSnapshot     = "messages.snapshot"
	EventTypePong         = "pong"
	EventTypeError        = "error"
)

// notificationTag groups message alerts so clients can collapse them.
const notificationTag = "message-notification"

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Server → Client payloads ---

type NotificationPayload struct {
	Tag   string `json:"tag"`
	Title string `json:"title"`
	From  string `json:"from"`
	Body  string `json:"body"`
}

type SnapshotPayload struct {
	Messages []domain.Message `json:"messages"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}

// NewNotificationEvent wraps a deduplicated message alert.
func NewNotificationEvent(n notify.Notification) (*Event, error) {
	return NewEvent(EventTypeNotification, NotificationPayload{
		Tag:   notificationTag,
		Title: "New message from " + n.From,
		From:  n.From,
		Body:  n.Body,
	})
}
