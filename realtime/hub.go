package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Envelope is the frame pushed to websocket clients.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Message is a rendered envelope addressed to a room. Origin is the id of
// the connection it came from and never receives it back.
type Message struct {
	Room    string          `json:"room"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Broker carries room messages between API instances.
type Broker interface {
	Publish(ctx context.Context, m Message) error
	// Subscribe calls deliver for every message published by any instance,
	// this one included, until ctx is done.
	Subscribe(ctx context.Context, deliver func(Message)) error
}

// Hub maps rooms (rental ids) to the clients connected on this instance.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	memberOf map[*Client]map[string]struct{}
	broker   Broker
}

// NewHub returns a hub. With a nil broker messages are delivered to local
// clients only.
func NewHub(broker Broker) *Hub {
	return &Hub{
		rooms:    map[string]map[*Client]struct{}{},
		memberOf: map[*Client]map[string]struct{}{},
		broker:   broker,
	}
}

func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = map[*Client]struct{}{}
	}
	h.rooms[room][c] = struct{}{}
	if h.memberOf[c] == nil {
		h.memberOf[c] = map[string]struct{}{}
	}
	h.memberOf[c][room] = struct{}{}
}

func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(room, c)
}

func (h *Hub) leave(room string, c *Client) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.memberOf[c]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.memberOf, c)
		}
	}
}

// Remove drops c from every room it joined.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.memberOf[c] {
		h.leave(room, c)
	}
}

// Members reports how many local clients are in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish sends event with payload to everyone in room except the client
// whose id is originID.
func (h *Hub) Publish(ctx context.Context, room, event string, payload any, originID string) error {
	raw, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	m := Message{Room: room, Origin: originID, Payload: raw}
	if h.broker != nil {
		return h.broker.Publish(ctx, m)
	}
	h.deliver(m)
	return nil
}

func (h *Hub) deliver(m Message) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[m.Room]))
	for c := range h.rooms[m.Room] {
		if c.ID != m.Origin {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(m.Payload) {
			log.Printf("Dropping slow websocket client %s", c.ID)
			h.Remove(c)
			c.Close()
		}
	}
}

// Run relays broker traffic to local clients until ctx is done. Without a
// broker it only waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		<-ctx.Done()
		return nil
	}
	err := h.broker.Subscribe(ctx, h.deliver)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("hub subscription: %w", err)
	}
	return nil
}
