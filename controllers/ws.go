package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/dcode-github/agrirent/backend/realtime"
	"github.com/dcode-github/agrirent/backend/services"
	"github.com/dcode-github/agrirent/backend/utils"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// EventMessageSent acknowledges a websocket chat message to its
	// sender, who does not receive the room broadcast.
	EventMessageSent = "chat:sent"
	EventRoomJoined  = "room:joined"
)

// ServeWS upgrades an authenticated request to a chat connection. Browsers
// cannot set headers on websocket requests, so the token may also come in
// the "token" query parameter.
func ServeWS(hub *realtime.Hub, chat *services.ChatService, tokens *utils.TokenManager, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	handle := chatFrameHandler(chat)

	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		claims, err := tokens.ValidateJWT(token)
		if err != nil {
			log.Printf("Rejected websocket connection: %v", err)
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Websocket upgrade failed: %v", err)
			return
		}

		client := realtime.NewClient(hub, conn, claims.UserID)
		log.Printf("Client connected: %s (user %s)", client.ID, client.UserID)
		go client.WritePump()
		// the request context ends once the handler returns
		go func() {
			client.ReadPump(context.Background(), handle)
			log.Printf("Client disconnected: %s", client.ID)
		}()
	}
}

func chatFrameHandler(chat *services.ChatService) realtime.FrameHandler {
	return func(ctx context.Context, c *realtime.Client, f realtime.Frame) {
		userID, err := primitive.ObjectIDFromHex(c.UserID)
		if err != nil {
			c.Emit(realtime.EventError, payload{"message": "Invalid token subject"})
			return
		}

		switch f.Event {
		case realtime.EventJoinRoom, realtime.EventLeaveRoom:
			rentalID, err := primitive.ObjectIDFromHex(f.RentalID)
			if err != nil {
				c.Emit(realtime.EventError, payload{"message": "Invalid rentalId"})
				return
			}
			if f.Event == realtime.EventLeaveRoom {
				c.Hub().Leave(rentalID.Hex(), c)
				return
			}
			if err := chat.CanAccess(ctx, rentalID, userID); err != nil {
				c.Emit(realtime.EventError, payload{"message": errorText(err)})
				return
			}
			c.Hub().Join(rentalID.Hex(), c)
			c.Emit(EventRoomJoined, payload{"rentalId": rentalID.Hex()})

		case services.EventChatMessage:
			var req sendMessageRequest
			if err := json.Unmarshal(f.Data, &req); err != nil {
				c.Emit(realtime.EventError, payload{"message": "Invalid message payload"})
				return
			}
			if req.RentalID == "" {
				req.RentalID = f.RentalID
			}
			in, problem := req.toInput(userID)
			if problem != "" {
				c.Emit(realtime.EventError, payload{"message": problem})
				return
			}
			msg, err := chat.Send(ctx, in, c.ID)
			if err != nil {
				log.Printf("Chat save error: %v", err)
				c.Emit(realtime.EventError, payload{"message": errorText(err)})
				return
			}
			c.Emit(EventMessageSent, msg)

		default:
			c.Emit(realtime.EventError, payload{"message": "Unknown event " + f.Event})
		}
	}
}

func errorText(err error) string {
	var domainErr *services.Error
	if errors.As(err, &domainErr) {
		return domainErr.Message()
	}
	return "Server error"
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
