package ws

import (
	"github.com/elearnhq/elearn-api/realtime"
	"github.com/elearnhq/elearn-api/services"
	"github.com/gofiber/contrib/websocket"
)

// Notifications serves /ws/notifications. The socket is push-only:
// each user gets their private group and anything the client sends is
// discarded.
func (h *WSHandler) Notifications(conn *websocket.Conn) {
	defer logRecover("notifications")
	defer conn.Close()

	userID := wsUserID(conn)
	if userID == 0 {
		return
	}

	group := services.NotificationGroup(userID)
	rtConn := realtime.NewConn()
	h.broker.Join(group, rtConn)
	defer h.broker.Leave(group, rtConn)

	go writePump(conn, rtConn)

	drainUntilClose(conn)
}
