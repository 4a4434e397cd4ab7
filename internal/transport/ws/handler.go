package ws

import (
	"context"
	"log"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"nhooyr.io/websocket"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/notify"
	"github.com/zawix/messages/internal/store"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
// Each connection gets its own watcher, so the client receives message
// snapshots and deduplicated notifications for as long as it is open.
func ServeWS(hub *Hub, st store.Store, jwtSecret string, trackByID bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		username, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			log.Printf("ws: accept error: %v", err)
			return
		}

		client := NewClient(hub, conn, username)

		watcher := notify.NewWatcher(st, NewHubNotifier(hub), username, trackByID)
		watcher.OnSnapshot(func(msgs []domain.Message) {
			evt, err := NewEvent(EventTypeSnapshot, SnapshotPayload{Messages: msgs})
			if err != nil {
				return
			}
			hub.SendToUser(username, evt)
		})
		client.watcher = watcher

		hub.register <- client
		watcher.Start(context.Background())

		go client.WritePump()
		go client.ReadPump()
	}
}

func validateToken(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}

	return claims.GetSubject()
}
