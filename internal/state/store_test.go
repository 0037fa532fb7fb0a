package state

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-support-app/internal/database"
	"trading-support-app/internal/events"
)

func newTestStore() *Store {
	return NewStore(nil, events.NewEventBus(), zerolog.Nop())
}

func TestConversationIsChronological(t *testing.T) {
	s := newTestStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.ApplyMessage(&database.Message{ID: "m2", SenderID: "admin", ReceiverID: "u1", Text: "second", CreatedAt: base.Add(time.Minute)})
	s.ApplyMessage(&database.Message{ID: "m1", SenderID: "u1", ReceiverID: "admin", Text: "first", CreatedAt: base})
	s.ApplyMessage(&database.Message{ID: "m3", SenderID: "u1", ReceiverID: "u2", Text: "other thread", CreatedAt: base.Add(2 * time.Minute)})

	conv := s.Conversation("u1", "admin")
	if len(conv) != 2 {
		t.Fatalf("expected 2 messages in conversation, got %d", len(conv))
	}
	if conv[0].ID != "m1" || conv[1].ID != "m2" {
		t.Errorf("conversation out of order: %s, %s", conv[0].ID, conv[1].ID)
	}
}

func TestUserTransactionsNewestFirst(t *testing.T) {
	s := newTestStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.ApplyTransaction(&database.Transaction{ID: "t1", UserID: "u1", Amount: 10, CreatedAt: base})
	s.ApplyTransaction(&database.Transaction{ID: "t2", UserID: "u1", Amount: 20, CreatedAt: base.Add(time.Hour)})
	s.ApplyTransaction(&database.Transaction{ID: "t3", UserID: "u2", Amount: 30, CreatedAt: base})

	txs := s.UserTransactions("u1")
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].ID != "t2" {
		t.Errorf("expected newest transaction first, got %s", txs[0].ID)
	}
}

func TestUnreadCount(t *testing.T) {
	s := newTestStore()
	now := time.Now()

	s.ApplyNotification(&database.Notification{ID: "n1", UserID: "u1", Read: false, CreatedAt: now})
	s.ApplyNotification(&database.Notification{ID: "n2", UserID: "u1", Read: true, CreatedAt: now})
	s.ApplyNotification(&database.Notification{ID: "n3", UserID: "u2", Read: false, CreatedAt: now})

	if got := s.UnreadCount("u1"); got != 1 {
		t.Errorf("expected 1 unread notification, got %d", got)
	}
}

func TestApplyUserOverwritesMirror(t *testing.T) {
	s := newTestStore()
	s.ApplyUser(&database.User{ID: "u1", Name: "before", Balance: 0})
	s.ApplyUser(&database.User{ID: "u1", Name: "after", Balance: 125.50})

	u := s.UserByID("u1")
	if u == nil {
		t.Fatal("user missing from mirror")
	}
	if u.Name != "after" || u.Balance != 125.50 {
		t.Errorf("mirror not overwritten: %s %.2f", u.Name, u.Balance)
	}
}
