package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatMessage struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	RentalID   primitive.ObjectID   `bson:"rentalId" json:"rentalId"`
	SenderID   primitive.ObjectID   `bson:"senderId" json:"senderId"`
	ReceiverID primitive.ObjectID   `bson:"receiverId" json:"receiverId"`
	Message    string               `bson:"message" json:"message"`
	SeenBy     []primitive.ObjectID `bson:"seenBy" json:"seenBy"`
	CreatedAt  time.Time            `bson:"createdAt" json:"createdAt"`
}

func (m *ChatMessage) SeenByUser(id primitive.ObjectID) bool {
	for _, s := range m.SeenBy {
		if s == id {
			return true
		}
	}
	return false
}

// ChatMessageView is a message with its sender and receiver resolved.
type ChatMessageView struct {
	ChatMessage `bson:",inline"`
	Sender      *UserSummary `json:"sender,omitempty"`
	Receiver    *UserSummary `json:"receiver,omitempty"`
}
