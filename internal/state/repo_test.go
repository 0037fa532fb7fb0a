package state

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-support-app/internal/database"
	"trading-support-app/internal/events"
)

// fakeRepo backs the store with in-memory rows and counts the updates
// that actually modify something.
type fakeRepo struct {
	notifications map[string]*database.Notification
	readWrites    int
	deletedUsers  []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{notifications: make(map[string]*database.Notification)}
}

func (f *fakeRepo) ListUsers(ctx context.Context) ([]*database.User, error)        { return nil, nil }
func (f *fakeRepo) ListMessages(ctx context.Context) ([]*database.Message, error)  { return nil, nil }
func (f *fakeRepo) ListTransactions(ctx context.Context) ([]*database.Transaction, error) {
	return nil, nil
}
func (f *fakeRepo) ListNotifications(ctx context.Context) ([]*database.Notification, error) {
	return nil, nil
}
func (f *fakeRepo) CreateMessage(ctx context.Context, msg *database.Message) error { return nil }

func (f *fakeRepo) CreateNotification(ctx context.Context, n *database.Notification) error {
	f.notifications[n.ID] = n
	return nil
}

func (f *fakeRepo) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	n, ok := f.notifications[id]
	if !ok || n.Read {
		return false, nil
	}
	n.Read = true
	f.readWrites++
	return true, nil
}

func (f *fakeRepo) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	for _, n := range f.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (f *fakeRepo) UpdateUserProfile(ctx context.Context, user *database.User) error { return nil }

func (f *fakeRepo) DeleteUser(ctx context.Context, userID string) error {
	f.deletedUsers = append(f.deletedUsers, userID)
	return nil
}

func TestMarkNotificationReadIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	s := NewStore(repo, events.NewEventBus(), zerolog.Nop())

	n := &database.Notification{ID: "n1", UserID: "u1", CreatedAt: time.Now()}
	if err := s.AddNotification(context.Background(), n); err != nil {
		t.Fatalf("AddNotification: %v", err)
	}

	if err := s.MarkNotificationRead(context.Background(), "n1"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := s.MarkNotificationRead(context.Background(), "n1"); err != nil {
		t.Fatalf("second mark: %v", err)
	}

	if repo.readWrites != 1 {
		t.Errorf("re-marking a read notification must not write again, got %d writes", repo.readWrites)
	}
	if s.UnreadCount("u1") != 0 {
		t.Errorf("notification should be read in the mirror")
	}
}

func TestDeleteUserDropsOwnedRows(t *testing.T) {
	repo := newFakeRepo()
	s := NewStore(repo, events.NewEventBus(), zerolog.Nop())
	now := time.Now()

	s.ApplyUser(&database.User{ID: "u1", Name: "doomed"})
	s.ApplyUser(&database.User{ID: "u2", Name: "bystander"})
	s.ApplyMessage(&database.Message{ID: "m1", SenderID: "u1", ReceiverID: "admin", CreatedAt: now})
	s.ApplyMessage(&database.Message{ID: "m2", SenderID: "admin", ReceiverID: "u1", CreatedAt: now})
	s.ApplyMessage(&database.Message{ID: "m3", SenderID: "u2", ReceiverID: "admin", CreatedAt: now})
	s.ApplyTransaction(&database.Transaction{ID: "t1", UserID: "u1", Amount: 10, CreatedAt: now})
	s.ApplyNotification(&database.Notification{ID: "n1", UserID: "u1", CreatedAt: now})

	if err := s.DeleteUser(context.Background(), "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if len(repo.deletedUsers) != 1 || repo.deletedUsers[0] != "u1" {
		t.Fatalf("repository delete not issued: %v", repo.deletedUsers)
	}
	if s.UserByID("u1") != nil {
		t.Error("deleted user still mirrored")
	}
	if got := len(s.Conversation("u1", "admin")); got != 0 {
		t.Errorf("deleted user's messages still mirrored: %d", got)
	}
	if got := len(s.UserTransactions("u1")); got != 0 {
		t.Errorf("deleted user's transactions still mirrored: %d", got)
	}
	if got := len(s.UserNotifications("u1")); got != 0 {
		t.Errorf("deleted user's notifications still mirrored: %d", got)
	}
	if s.UserByID("u2") == nil || len(s.Conversation("u2", "admin")) != 1 {
		t.Error("unrelated rows must survive the delete")
	}
}
