package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "rt:"

// envelope is the wire frame published to redis. Except carries the
// connection ID to skip on delivery, so the no-self-echo rule survives
// crossing process boundaries.
type envelope struct {
	Except string          `json:"except,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// RedisBroker fans group sends across processes over redis pub/sub.
// Local connections live in the embedded Hub; a subscription per active
// group feeds published frames back into it. Delivery stays best-effort:
// redis being down makes Send fail, never panic or block forever.
type RedisBroker struct {
	hub    *Hub
	client *redis.Client

	mu   sync.Mutex
	subs map[string]*groupSub
}

type groupSub struct {
	refs   int
	pubsub *redis.PubSub
}

// NewRedisBroker wraps the hub with a redis backplane
func NewRedisBroker(client *redis.Client, hub *Hub) *RedisBroker {
	return &RedisBroker{
		hub:    hub,
		client: client,
		subs:   make(map[string]*groupSub),
	}
}

// Join adds the connection locally and ensures this process is
// subscribed to the group's redis channel
func (b *RedisBroker) Join(group string, c *Conn) {
	b.hub.Join(group, c)

	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[group]; ok {
		sub.refs++
		return
	}

	pubsub := b.client.Subscribe(context.Background(), channelPrefix+group)
	b.subs[group] = &groupSub{refs: 1, pubsub: pubsub}
	go b.pump(group, pubsub)
}

// Leave removes the connection locally and drops the redis subscription
// once the last local member is gone
func (b *RedisBroker) Leave(group string, c *Conn) {
	b.hub.Leave(group, c)

	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[group]
	if !ok {
		return
	}
	sub.refs--
	if sub.refs <= 0 {
		delete(b.subs, group)
		if err := sub.pubsub.Close(); err != nil {
			log.Printf("realtime: closing subscription for %s: %v", group, err)
		}
	}
}

// Send publishes to the group's channel; every subscribed process
// (including this one) delivers to its local members
func (b *RedisBroker) Send(ctx context.Context, group string, payload any) error {
	return b.SendExcept(ctx, group, payload, "")
}

// SendExcept publishes with a connection ID to exclude on delivery
func (b *RedisBroker) SendExcept(ctx context.Context, group string, payload any, exceptID string) error {
	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}
	wire, err := json.Marshal(envelope{Except: exceptID, Data: frame})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+group, wire).Err()
}

// pump feeds frames from the group's redis channel into the local hub
// until the subscription is closed
func (b *RedisBroker) pump(group string, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Printf("realtime: bad frame on %s: %v", group, err)
			continue
		}
		b.hub.deliver(group, env.Data, env.Except)
	}
}
