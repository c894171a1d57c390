package events

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"thoughtbox/internal/domain"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Event payloads carry no per-user data, so cross-origin reads are fine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wireEvent is the JSON shape sent to websocket clients.
type wireEvent struct {
	Kind     string    `json:"kind"`
	ActorID  string    `json:"actorId"`
	PostID   string    `json:"postId,omitempty"`
	TargetID string    `json:"targetId,omitempty"`
	Count    int       `json:"count"`
	At       time.Time `json:"at"`
}

// Handler upgrades the connection and streams hub events until the client
// disconnects.
func Handler(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		ch, cancel := hub.Subscribe()
		defer cancel()

		// Drain client frames so pong handling works and closes are noticed.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
						time.Now().Add(writeTimeout))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(toWire(ev)); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return
				}
			}
		}
	}
}

func toWire(ev domain.Event) wireEvent {
	return wireEvent{
		Kind:     ev.Kind,
		ActorID:  ev.ActorID,
		PostID:   ev.PostID,
		TargetID: ev.TargetID,
		Count:    ev.Count,
		At:       ev.At,
	}
}
