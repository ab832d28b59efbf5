package controllers

import (
	"net/http"

	"github.com/dcode-github/agrirent/backend/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sendMessageRequest struct {
	RentalID   string `json:"rentalId" validate:"required"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message" validate:"required"`
}

// toInput resolves the ids of a send request; senderID is always the
// authenticated account.
func (req sendMessageRequest) toInput(senderID primitive.ObjectID) (services.SendMessageInput, string) {
	in := services.SendMessageInput{SenderID: senderID, Message: req.Message}
	var err error
	if in.RentalID, err = primitive.ObjectIDFromHex(req.RentalID); err != nil {
		return in, "Invalid rentalId"
	}
	if req.ReceiverID != "" {
		if in.ReceiverID, err = primitive.ObjectIDFromHex(req.ReceiverID); err != nil {
			return in, "Invalid receiverId"
		}
	}
	return in, ""
}

func GetChatByRental(chat *services.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		rentalID, ok := pathID(w, r, "rentalId")
		if !ok {
			return
		}
		messages, err := chat.History(r.Context(), rentalID, actor)
		if err != nil {
			writeError(w, err, "Failed to load chat")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"messages": messages})
	}
}

// SendMessage stores a message sent over HTTP and relays it to every live
// member of the rental's room.
func SendMessage(chat *services.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req sendMessageRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		in, problem := req.toInput(actor)
		if problem != "" {
			writeMessage(w, http.StatusBadRequest, problem)
			return
		}

		msg, err := chat.Send(r.Context(), in, "")
		if err != nil {
			writeError(w, err, "Failed to send message")
			return
		}
		writeSuccess(w, http.StatusCreated, payload{"message": msg})
	}
}

func MarkChatSeen(chat *services.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		rentalID, ok := pathID(w, r, "rentalId")
		if !ok {
			return
		}
		updated, err := chat.MarkSeen(r.Context(), rentalID, actor)
		if err != nil {
			writeError(w, err, "Failed to mark seen")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"updated": updated})
	}
}
