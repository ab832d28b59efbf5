package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 << 10
	sendBufferSize = 64
)

// Client event names.
const (
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"
	EventError     = "error"
)

// Frame is a message received from a websocket client.
type Frame struct {
	Event    string          `json:"event"`
	RentalID string          `json:"rentalId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// FrameHandler processes one client frame.
type FrameHandler func(ctx context.Context, c *Client, f Frame)

// Client is one websocket connection of an authenticated account.
type Client struct {
	ID     string
	UserID string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) Hub() *Hub { return c.hub }

// enqueue hands a frame to the write pump without blocking. It reports
// false when the client is closed or its buffer is full.
func (c *Client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Emit sends an event to this client only.
func (c *Client) Emit(event string, data any) {
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		log.Printf("Failed to encode %s for client %s: %v", event, c.ID, err)
		return
	}
	c.enqueue(raw)
}

// Close stops the write pump; it is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump decodes frames and passes them to handle until the connection
// fails or ctx ends. It removes the client from the hub on return.
func (c *Client) ReadPump(ctx context.Context, handle FrameHandler) {
	defer func() {
		c.hub.Remove(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.Emit(EventError, map[string]string{"message": "Malformed frame"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Websocket client %s read error: %v", c.ID, err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		handle(ctx, c, f)
	}
}

// WritePump drains the send buffer to the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("Websocket client %s write error: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
