package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "chat:"

// RedisBroker fans room messages out through Redis pub/sub so every API
// instance reaches its own websocket clients.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, m Message) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode room message: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+m.Room, raw).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.Room, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(Message)) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	// wait for the subscription to be confirmed before relaying
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription closed")
			}
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				log.Printf("Discarding malformed message on %s: %v", msg.Channel, err)
				continue
			}
			if m.Room == "" {
				m.Room = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			deliver(m)
		}
	}
}
