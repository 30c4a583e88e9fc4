// Package realtime implements the group-addressed pub/sub layer used by
// the notification fan-out and the chat/call sockets. Groups are plain
// string names ("chat_<id>", "call_<id>", "notifications_<uid>");
// delivery is best-effort with no durability or replay.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// connection buffer; a receiver that falls this far behind is dropped
// from the group rather than blocking everyone else
const sendBuffer = 32

// Broker is the group-messaging primitive the rest of the system
// depends on
type Broker interface {
	Join(group string, c *Conn)
	Leave(group string, c *Conn)
	// Send delivers the payload to every connection in the group
	Send(ctx context.Context, group string, payload any) error
	// SendExcept delivers to every connection in the group except the
	// one identified by exceptID (used for call-signal relay)
	SendExcept(ctx context.Context, group string, payload any, exceptID string) error
}

// Conn is one subscriber endpoint. The websocket handlers pump
// Receive() frames out to their peer.
type Conn struct {
	ID string

	ch     chan []byte
	closed bool
	mu     sync.Mutex
}

// NewConn allocates a connection with a fresh identity
func NewConn() *Conn {
	return &Conn{
		ID: uuid.New().String(),
		ch: make(chan []byte, sendBuffer),
	}
}

// Receive returns the channel of frames addressed to this connection.
// The channel is closed when the connection is dropped from the hub.
func (c *Conn) Receive() <-chan []byte {
	return c.ch
}

// push queues a frame; reports false when the buffer is full
func (c *Conn) push(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.ch <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Hub is the in-process Broker. It is the complete implementation for a
// single-process deployment and the local delivery end of RedisBroker.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Conn]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*Conn]struct{})}
}

// Join adds the connection to the group
func (h *Hub) Join(group string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Conn]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
}

// Leave removes the connection from the group. Once a connection has
// left its last group it is closed, releasing the receive channel.
func (h *Hub) Leave(group string, c *Conn) {
	h.mu.Lock()
	members, ok := h.groups[group]
	if ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	still := h.memberAnywhereLocked(c)
	h.mu.Unlock()

	if !still {
		c.close()
	}
}

func (h *Hub) memberAnywhereLocked(c *Conn) bool {
	for _, members := range h.groups {
		if _, ok := members[c]; ok {
			return true
		}
	}
	return false
}

// Send delivers the JSON-encoded payload to every group member
func (h *Hub) Send(ctx context.Context, group string, payload any) error {
	return h.SendExcept(ctx, group, payload, "")
}

// SendExcept delivers to every member whose ID differs from exceptID
func (h *Hub) SendExcept(_ context.Context, group string, payload any, exceptID string) error {
	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}
	h.deliver(group, frame, exceptID)
	return nil
}

// deliver fans a raw frame out to the local group, dropping connections
// whose buffers are full
func (h *Hub) deliver(group string, frame []byte, exceptID string) {
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		if exceptID != "" && c.ID == exceptID {
			continue
		}
		members = append(members, c)
	}
	h.mu.RUnlock()

	var stalled []*Conn
	for _, c := range members {
		if !c.push(frame) {
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		h.Leave(group, c)
	}
}

// GroupSize reports the current number of members, for tests and stats
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func encodeFrame(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
