package http

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"

	natsadapter "github.com/samirrijal/archmap/internal/adapters/nats"
)

// FollowHandler returns a handler that relays the viewport and map-click
// events of another map session, e.g. for a presenter screen mirroring a
// guide's map. The followed session id is the :session route parameter.
func FollowHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		sessionID := c.Params("session")
		log := deps.logger().With("followed_session", sessionID, "remote", c.RemoteAddr().String())
		log.Info("ws follower connected")

		var mu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		if deps.Subscriber == nil {
			_ = writeJSON(map[string]string{"error": "session events unavailable"})
			return
		}

		stop, err := deps.Subscriber.FollowSession(sessionID, func(ev natsadapter.SessionEvent) {
			_ = writeJSON(ev)
		})
		if err != nil {
			log.Error("follow subscribe failed", "error", err)
			_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
			return
		}
		defer stop()
		_ = writeJSON(map[string]string{"status": "following", "session_id": sessionID})

		done := make(chan struct{})
		defer close(done)
		go keepAlive(c, &mu, done)

		// Followers are read-only; reading detects the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		log.Info("ws follower disconnected")
	}
}
