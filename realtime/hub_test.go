package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, c *Conn) []byte {
	t.Helper()
	select {
	case frame, ok := <-c.Receive():
		require.True(t, ok, "receive channel closed")
		return frame
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func TestHubSendReachesEveryMember(t *testing.T) {
	hub := NewHub()
	a, b := NewConn(), NewConn()
	hub.Join("chat_1", a)
	hub.Join("chat_1", b)

	outsider := NewConn()
	hub.Join("chat_2", outsider)

	require.NoError(t, hub.Send(context.Background(), "chat_1", map[string]string{"message": "hi"}))

	for _, c := range []*Conn{a, b} {
		var got map[string]string
		require.NoError(t, json.Unmarshal(recvOne(t, c), &got))
		assert.Equal(t, "hi", got["message"])
	}

	select {
	case <-outsider.Receive():
		t.Fatal("frame leaked across groups")
	default:
	}
}

func TestHubSendExceptSkipsSender(t *testing.T) {
	hub := NewHub()
	sender, peer := NewConn(), NewConn()
	hub.Join("call_1", sender)
	hub.Join("call_1", peer)

	raw := json.RawMessage(`{"type":"offer"}`)
	require.NoError(t, hub.SendExcept(context.Background(), "call_1", raw, sender.ID))

	assert.Equal(t, []byte(raw), recvOne(t, peer))
	select {
	case <-sender.Receive():
		t.Fatal("sender echoed its own frame")
	default:
	}
}

func TestHubRawBytesPassThroughUnencoded(t *testing.T) {
	hub := NewHub()
	c := NewConn()
	hub.Join("chat_1", c)

	frame := []byte(`{"already":"encoded"}`)
	require.NoError(t, hub.Send(context.Background(), "chat_1", frame))
	assert.Equal(t, frame, recvOne(t, c))
}

func TestHubLeaveClosesAfterLastGroup(t *testing.T) {
	hub := NewHub()
	c := NewConn()
	hub.Join("chat_1", c)
	hub.Join("notifications_7", c)

	hub.Leave("chat_1", c)
	select {
	case _, ok := <-c.Receive():
		if !ok {
			t.Fatal("channel closed while still a member elsewhere")
		}
	default:
	}
	assert.Equal(t, 0, hub.GroupSize("chat_1"))
	assert.Equal(t, 1, hub.GroupSize("notifications_7"))

	hub.Leave("notifications_7", c)
	_, ok := <-c.Receive()
	assert.False(t, ok, "channel stays open after leaving every group")
}

func TestHubDropsStalledConnections(t *testing.T) {
	hub := NewHub()
	stalled := NewConn()
	hub.Join("chat_1", stalled)

	// one more frame than the buffer holds, with nobody draining
	for i := 0; i <= sendBuffer; i++ {
		require.NoError(t, hub.Send(context.Background(), "chat_1", fmt.Sprintf("frame-%d", i)))
	}

	assert.Equal(t, 0, hub.GroupSize("chat_1"))

	// overflow closed the stalled connection; buffered frames drain, then
	// the channel reports closed
	delivered := 0
	for range stalled.Receive() {
		delivered++
	}
	assert.Equal(t, sendBuffer, delivered)
}

func TestHubSendToEmptyGroupIsHarmless(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.Send(context.Background(), "chat_404", "hello"))
}
