package services

import (
	"context"
	"sync"
	"testing"

	"github.com/dcode-github/agrirent/backend/models"
)

type published struct {
	room, event, origin string
	payload             any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []published
}

func (n *recordingNotifier) Publish(_ context.Context, room, event string, payload any, originID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, published{room: room, event: event, origin: originID, payload: payload})
	return nil
}

func newChatFixture(t *testing.T) (*fixture, *models.Rental, *ChatService, *recordingNotifier) {
	t.Helper()
	f := newFixture(t, 50)
	rentals := NewRentalService(f.store, NewLocalLocker())
	r := f.book(t, rentals, f.renter.ID, at(10, 0), at(12, 0))
	n := &recordingNotifier{}
	return f, r, NewChatService(f.store, n), n
}

func TestSendDefaultsReceiverAndRelays(t *testing.T) {
	f, r, svc, n := newChatFixture(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, SendMessageInput{RentalID: r.ID, SenderID: f.renter.ID, Message: " is it free? "}, "conn-1")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ReceiverID != f.owner.ID || msg.Message != "is it free?" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !msg.SeenByUser(f.renter.ID) || msg.SeenByUser(f.owner.ID) {
		t.Fatalf("seen set should start with the sender only: %v", msg.SeenBy)
	}
	if len(n.sent) != 1 || n.sent[0].room != r.ID.Hex() || n.sent[0].origin != "conn-1" || n.sent[0].event != EventChatMessage {
		t.Fatalf("unexpected relay %+v", n.sent)
	}
}

func TestSendRejectsOutsiders(t *testing.T) {
	f, r, svc, n := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, SendMessageInput{RentalID: r.ID, SenderID: f.other.ID, Message: "hi"}, "")
	assertKind(t, err, ErrForbidden)
	_, err = svc.Send(ctx, SendMessageInput{RentalID: r.ID, SenderID: f.owner.ID, ReceiverID: f.other.ID, Message: "hi"}, "")
	assertKind(t, err, ErrValidation)
	_, err = svc.Send(ctx, SendMessageInput{RentalID: r.ID, SenderID: f.owner.ID, Message: "   "}, "")
	assertKind(t, err, ErrValidation)
	if len(n.sent) != 0 {
		t.Fatalf("nothing should be relayed, got %+v", n.sent)
	}
}

func TestHistoryIsOrderedAndPopulated(t *testing.T) {
	f, r, svc, _ := newChatFixture(t)
	ctx := context.Background()

	for i, sender := range []*models.User{f.renter, f.owner, f.renter} {
		if _, err := svc.Send(ctx, SendMessageInput{RentalID: r.ID, SenderID: sender.ID, Message: string(rune('a' + i))}, ""); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	_, err := svc.History(ctx, r.ID, f.other.ID)
	assertKind(t, err, ErrForbidden)

	msgs, err := svc.History(ctx, r.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Message != "a" || msgs[2].Message != "c" {
		t.Fatalf("unexpected history %+v", msgs)
	}
	if msgs[1].Sender == nil || msgs[1].Sender.ID != f.owner.ID || msgs[1].Receiver.ID != f.renter.ID {
		t.Fatalf("parties not populated: %+v", msgs[1])
	}
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	f, r, svc, _ := newChatFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Send(ctx, SendMessageInput{RentalID: r.ID, SenderID: f.renter.ID, Message: "ping"}, ""); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	n, err := svc.MarkSeen(ctx, r.ID, f.owner.ID)
	if err != nil || n != 3 {
		t.Fatalf("first mark: %d %v", n, err)
	}
	first, _ := svc.History(ctx, r.ID, f.owner.ID)

	n, err = svc.MarkSeen(ctx, r.ID, f.owner.ID)
	if err != nil || n != 0 {
		t.Fatalf("second mark: %d %v", n, err)
	}
	second, _ := svc.History(ctx, r.ID, f.owner.ID)

	for i := range first {
		if len(first[i].SeenBy) != 2 || len(second[i].SeenBy) != 2 {
			t.Fatalf("seen sets differ: %v vs %v", first[i].SeenBy, second[i].SeenBy)
		}
	}

	_, err = svc.MarkSeen(ctx, r.ID, f.other.ID)
	assertKind(t, err, ErrForbidden)
}
