package ws

import (
	"context"
	"log"

	"github.com/elearnhq/elearn-api/realtime"
	"github.com/elearnhq/elearn-api/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// WSHandler serves the websocket endpoints. Admission failures close
// the socket without any message, so probing reveals nothing about
// which conversations exist.
type WSHandler struct {
	broker   realtime.Broker
	messages *services.MessageService
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(broker realtime.Broker, messages *services.MessageService) *WSHandler {
	return &WSHandler{broker: broker, messages: messages}
}

// UpgradeRequired rejects plain HTTP requests on websocket routes
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// writePump copies hub frames onto the socket until the connection's
// channel closes. Runs as its own goroutine per socket; the read loop
// owns teardown, and leaving the last group closes the channel.
func writePump(conn *websocket.Conn, rtConn *realtime.Conn) {
	for frame := range rtConn.Receive() {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// drainUntilClose consumes client frames, discarding them, until the
// peer disconnects. Used by push-only endpoints.
func drainUntilClose(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func logRecover(endpoint string) {
	if r := recover(); r != nil {
		log.Printf("ws %s: recovered: %v", endpoint, r)
	}
}

// wsUint reads a positive uint from the connection's route params, 0
// when absent or malformed
func wsUint(conn *websocket.Conn, name string) uint {
	var id uint
	raw := conn.Params(name)
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0
		}
		id = id*10 + uint(r-'0')
	}
	return id
}

// wsUserID reads the authenticated user id stashed by the auth
// middleware before the upgrade, 0 when anonymous
func wsUserID(conn *websocket.Conn) uint {
	id, _ := conn.Locals("user_id").(uint)
	return id
}

// admit verifies the user may join the conversation's groups. False
// means close silently.
func (h *WSHandler) admit(conversationID, userID uint) bool {
	if userID == 0 || conversationID == 0 {
		return false
	}
	ok, err := h.messages.IsParticipant(context.Background(), conversationID, userID)
	if err != nil {
		return false
	}
	return ok
}
