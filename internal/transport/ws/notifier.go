package ws

import (
	"log"

	"github.com/zawix/messages/internal/notify"
)

// HubNotifier implements notify.Sink using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Deliver(username string, notif notify.Notification) {
	evt, err := NewNotificationEvent(notif)
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	n.hub.SendToUser(username, evt)
}
