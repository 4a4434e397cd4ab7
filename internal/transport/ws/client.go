package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/zawix/messages/internal/notify"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 256
)

// Client represents a single WebSocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	username string

	// watcher streams this connection's message snapshots and alerts.
	watcher *notify.Watcher

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, username string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		username: username,
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
	}
}

// ReadPump reads messages from the WebSocket and handles them.
func (c *Client) ReadPump() {
	defer func() {
		if c.watcher != nil {
			c.watcher.Stop()
		}
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: client %s disconnected", c.username)
			} else {
				log.Printf("ws: read error from %s: %v", c.username, err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.username, err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error to %s: %v", c.username, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong})
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
