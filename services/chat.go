package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EventChatMessage = "chat:message"
	maxMessageLength = 4000
)

// Notifier fans an event out to the live connections joined to a room,
// skipping the connection identified by originID (empty skips nobody).
type Notifier interface {
	Publish(ctx context.Context, room, event string, payload any, originID string) error
}

type ChatService struct {
	chats    repository.ChatRepository
	rentals  repository.RentalRepository
	users    repository.UserRepository
	notifier Notifier
	now      func() time.Time
}

func NewChatService(store *repository.Store, notifier Notifier) *ChatService {
	return &ChatService{
		chats:    store.Chats,
		rentals:  store.Rentals,
		users:    store.Users,
		notifier: notifier,
		now:      time.Now,
	}
}

type SendMessageInput struct {
	RentalID   primitive.ObjectID
	SenderID   primitive.ObjectID
	ReceiverID primitive.ObjectID // optional, defaults to the other party
	Message    string
}

// Send stores a message in a rental's conversation and relays it to the
// room. originID names the live connection the message came from, if any,
// so that connection does not get its own message echoed back.
func (s *ChatService) Send(ctx context.Context, in SendMessageInput, originID string) (*models.ChatMessage, error) {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, newError(ErrValidation, "message is required")
	}
	if len(text) > maxMessageLength {
		return nil, newError(ErrValidation, "message is too long")
	}

	rental, err := s.participantRental(ctx, in.RentalID, in.SenderID)
	if err != nil {
		return nil, err
	}
	other := rental.OwnerID
	if in.SenderID == rental.OwnerID {
		other = rental.RenterID
	}
	receiver := in.ReceiverID
	if receiver.IsZero() {
		receiver = other
	}
	if receiver != other {
		return nil, newError(ErrValidation, "Receiver must be the other party of the rental")
	}

	msg := &models.ChatMessage{
		RentalID:   rental.ID,
		SenderID:   in.SenderID,
		ReceiverID: receiver,
		Message:    text,
		SeenBy:     []primitive.ObjectID{in.SenderID},
		CreatedAt:  s.now().UTC(),
	}
	if err := s.chats.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("ChatService.Send: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, rental.ID.Hex(), EventChatMessage, msg, originID); err != nil {
			// the message is stored; peers will see it on their next fetch
			log.Printf("Failed to relay chat message %s: %v", msg.ID.Hex(), err)
		}
	}
	return msg, nil
}

// History returns the conversation of a rental oldest first.
func (s *ChatService) History(ctx context.Context, rentalID, actorID primitive.ObjectID) ([]models.ChatMessageView, error) {
	rental, err := s.participantRental(ctx, rentalID, actorID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.chats.FindByRental(ctx, rentalID)
	if err != nil {
		return nil, fmt.Errorf("ChatService.History: %w", err)
	}

	users, err := s.users.FindByIDs(ctx, []primitive.ObjectID{rental.OwnerID, rental.RenterID})
	if err != nil {
		return nil, fmt.Errorf("ChatService.History: %w", err)
	}
	byID := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	views := make([]models.ChatMessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.ChatMessageView{
			ChatMessage: m,
			Sender:      byID[m.SenderID].Summary(),
			Receiver:    byID[m.ReceiverID].Summary(),
		})
	}
	return views, nil
}

// MarkSeen adds actorID to the seen set of every message of the rental.
// Repeating the call changes nothing.
func (s *ChatService) MarkSeen(ctx context.Context, rentalID, actorID primitive.ObjectID) (int64, error) {
	if _, err := s.participantRental(ctx, rentalID, actorID); err != nil {
		return 0, err
	}
	n, err := s.chats.MarkSeen(ctx, rentalID, actorID)
	if err != nil {
		return 0, fmt.Errorf("ChatService.MarkSeen: %w", err)
	}
	return n, nil
}

// CanAccess reports whether actorID may join the live room of a rental.
func (s *ChatService) CanAccess(ctx context.Context, rentalID, actorID primitive.ObjectID) error {
	_, err := s.participantRental(ctx, rentalID, actorID)
	return err
}

func (s *ChatService) participantRental(ctx context.Context, rentalID, actorID primitive.ObjectID) (*models.Rental, error) {
	rental, err := s.rentals.FindByID(ctx, rentalID)
	if err != nil {
		return nil, lookupError(err, "Rental not found")
	}
	if partyOf(rental, actorID) == 0 {
		return nil, newError(ErrForbidden, "You are not part of this rental")
	}
	return rental, nil
}
