package ws

import (
	"context"
	"encoding/json"

	"github.com/elearnhq/elearn-api/realtime"
	"github.com/elearnhq/elearn-api/services"
	"github.com/gofiber/contrib/websocket"
)

// inboundChat is the frame a client sends on the chat socket
type inboundChat struct {
	Message string `json:"message"`
}

// Chat serves /ws/chat/:id. Every admitted socket joins the
// conversation's chat group; messages are persisted first and then
// broadcast to the whole group, the sender's own sockets included.
func (h *WSHandler) Chat(conn *websocket.Conn) {
	defer logRecover("chat")
	defer conn.Close()

	conversationID := wsUint(conn, "id")
	userID := wsUserID(conn)
	if !h.admit(conversationID, userID) {
		return
	}

	group := services.ChatGroup(conversationID)
	rtConn := realtime.NewConn()
	h.broker.Join(group, rtConn)
	defer h.broker.Leave(group, rtConn)

	go writePump(conn, rtConn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var frame inboundChat
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Message == "" {
			continue
		}

		// persistence and fan-out both happen in the service; a
		// malformed or unauthorized send is dropped, not fatal
		if _, err := h.messages.SaveMessage(context.Background(), conversationID, userID, frame.Message); err != nil {
			continue
		}
	}
}
