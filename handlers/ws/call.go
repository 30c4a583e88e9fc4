package ws

import (
	"context"
	"encoding/json"

	"github.com/elearnhq/elearn-api/realtime"
	"github.com/elearnhq/elearn-api/services"
	"github.com/gofiber/contrib/websocket"
)

// Call serves /ws/call/:id. Frames are opaque signaling payloads
// relayed verbatim to every other socket in the call group; the sender
// never hears its own frames back.
func (h *WSHandler) Call(conn *websocket.Conn) {
	defer logRecover("call")
	defer conn.Close()

	conversationID := wsUint(conn, "id")
	userID := wsUserID(conn)
	if !h.admit(conversationID, userID) {
		return
	}

	group := services.CallGroup(conversationID)
	rtConn := realtime.NewConn()
	h.broker.Join(group, rtConn)
	defer h.broker.Leave(group, rtConn)

	go writePump(conn, rtConn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if !json.Valid(raw) {
			continue
		}
		if err := h.messages.RelaySignal(context.Background(), conversationID, rtConn.ID, raw); err != nil {
			continue
		}
	}
}
