// Package state maintains an in-memory mirror of the four domain
// collections, reconciled against the database whenever a collection
// change event arrives. Writes go remote-first and are applied to the
// mirror optimistically on success.
package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trading-support-app/internal/database"
	"trading-support-app/internal/events"
)

const reloadTimeout = 10 * time.Second

// Repo is the slice of the repository the mirror reads from and writes
// through.
type Repo interface {
	ListUsers(ctx context.Context) ([]*database.User, error)
	ListMessages(ctx context.Context) ([]*database.Message, error)
	ListTransactions(ctx context.Context) ([]*database.Transaction, error)
	ListNotifications(ctx context.Context) ([]*database.Notification, error)
	CreateMessage(ctx context.Context, msg *database.Message) error
	CreateNotification(ctx context.Context, n *database.Notification) error
	MarkNotificationRead(ctx context.Context, id string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	UpdateUserProfile(ctx context.Context, user *database.User) error
	DeleteUser(ctx context.Context, userID string) error
}

// Store holds the mirrored collections. All dependencies are injected;
// the store has no package-level state.
type Store struct {
	repo   Repo
	bus    *events.EventBus
	logger zerolog.Logger

	mu            sync.RWMutex
	users         map[string]*database.User
	messages      map[string]*database.Message
	transactions  map[string]*database.Transaction
	notifications map[string]*database.Notification
}

// NewStore creates a mirror store over the repository
func NewStore(repo Repo, bus *events.EventBus, logger zerolog.Logger) *Store {
	return &Store{
		repo:          repo,
		bus:           bus,
		logger:        logger.With().Str("component", "StateStore").Logger(),
		users:         make(map[string]*database.User),
		messages:      make(map[string]*database.Message),
		transactions:  make(map[string]*database.Transaction),
		notifications: make(map[string]*database.Notification),
	}
}

// Load populates the mirror from the database
func (s *Store) Load(ctx context.Context) error {
	if err := s.reloadUsers(ctx); err != nil {
		return err
	}
	if err := s.reloadMessages(ctx); err != nil {
		return err
	}
	if err := s.reloadTransactions(ctx); err != nil {
		return err
	}
	if err := s.reloadNotifications(ctx); err != nil {
		return err
	}
	s.logger.Info().
		Int("users", len(s.users)).
		Int("messages", len(s.messages)).
		Int("transactions", len(s.transactions)).
		Int("notifications", len(s.notifications)).
		Msg("mirror loaded")
	return nil
}

// Start subscribes the store to collection change events. Each event
// triggers a reload-and-merge of the affected collection.
func (s *Store) Start() {
	s.bus.Subscribe(events.EventUsersChanged, func(events.Event) { s.reloadWithLog("users", s.reloadUsers) })
	s.bus.Subscribe(events.EventMessagesChanged, func(events.Event) { s.reloadWithLog("messages", s.reloadMessages) })
	s.bus.Subscribe(events.EventTransactionsChanged, func(events.Event) { s.reloadWithLog("transactions", s.reloadTransactions) })
	s.bus.Subscribe(events.EventNotificationsChanged, func(events.Event) { s.reloadWithLog("notifications", s.reloadNotifications) })
}

func (s *Store) reloadWithLog(collection string, reload func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	if err := reload(ctx); err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Msg("mirror reload failed")
	}
}

func (s *Store) reloadUsers(ctx context.Context) error {
	remote, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users = mergeRecords(s.users, remote,
		func(u *database.User) string { return u.ID },
		func(u *database.User) time.Time { return u.UpdatedAt })
	s.mu.Unlock()
	return nil
}

func (s *Store) reloadMessages(ctx context.Context) error {
	remote, err := s.repo.ListMessages(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.messages = mergeRecords(s.messages, remote,
		func(m *database.Message) string { return m.ID },
		func(m *database.Message) time.Time { return m.CreatedAt })
	s.mu.Unlock()
	return nil
}

func (s *Store) reloadTransactions(ctx context.Context) error {
	remote, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.transactions = mergeRecords(s.transactions, remote,
		func(t *database.Transaction) string { return t.ID },
		func(t *database.Transaction) time.Time { return t.UpdatedAt })
	s.mu.Unlock()
	return nil
}

func (s *Store) reloadNotifications(ctx context.Context) error {
	remote, err := s.repo.ListNotifications(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.notifications = mergeRecords(s.notifications, remote,
		func(n *database.Notification) string { return n.ID },
		func(n *database.Notification) time.Time { return n.CreatedAt })
	s.mu.Unlock()
	return nil
}

// ============================================================================
// Read accessors. Messages are ascending by created_at; transactions and
// notifications descending; users newest first.
// ============================================================================

// Users returns all mirrored users, newest first
func (s *Store) Users() []*database.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*database.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.After(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UserByID returns the mirrored user or nil
func (s *Store) UserByID(id string) *database.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[id]
}

// Conversation returns the mirrored messages between two users,
// oldest first.
func (s *Store) Conversation(userA, userB string) []*database.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*database.Message
	for _, m := range s.messages {
		if (m.SenderID == userA && m.ReceiverID == userB) ||
			(m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, m)
		}
	}
	sortMessagesAsc(out)
	return out
}

// Messages returns every mirrored message, oldest first
func (s *Store) Messages() []*database.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*database.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m)
	}
	sortMessagesAsc(out)
	return out
}

// UserTransactions returns a user's mirrored transactions, newest first
func (s *Store) UserTransactions(userID string) []*database.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*database.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sortTransactionsDesc(out)
	return out
}

// Transactions returns every mirrored transaction, newest first
func (s *Store) Transactions() []*database.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*database.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	sortTransactionsDesc(out)
	return out
}

// UserNotifications returns a user's mirrored notifications, newest first
func (s *Store) UserNotifications(userID string) []*database.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*database.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sortNotificationsDesc(out)
	return out
}

// UnreadCount returns the number of unread notifications for a user
func (s *Store) UnreadCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count
}

// ============================================================================
// Writes. Remote-first: the database write happens before the mirror
// mutation, and the collection change event is published after both.
// ============================================================================

// AddMessage persists a message and mirrors it
func (s *Store) AddMessage(ctx context.Context, msg *database.Message) error {
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return err
	}
	s.ApplyMessage(msg)
	s.bus.PublishCollectionChanged("messages", msg.ReceiverID)
	return nil
}

// AddNotification persists a notification and mirrors it
func (s *Store) AddNotification(ctx context.Context, n *database.Notification) error {
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return err
	}
	s.ApplyNotification(n)
	s.bus.PublishCollectionChanged("notifications", n.UserID)
	return nil
}

// MarkNotificationRead flips a notification to read. Idempotent: the
// repository update matches no row when the notification is already
// read, and an unchanged row publishes no event.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	changed, err := s.repo.MarkNotificationRead(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	var owner string
	s.mu.Lock()
	if n, ok := s.notifications[id]; ok {
		n.Read = true
		owner = n.UserID
	}
	s.mu.Unlock()
	s.bus.PublishCollectionChanged("notifications", owner)
	return nil
}

// MarkAllNotificationsRead flips every unread notification of a user
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllNotificationsRead(ctx, userID); err != nil {
		return err
	}
	s.mu.Lock()
	for _, n := range s.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	s.mu.Unlock()
	s.bus.PublishCollectionChanged("notifications", userID)
	return nil
}

// DeleteUser removes a user and everything they own. The merge keeps
// mirror-only records alive, so deleted rows are dropped from the
// mirror explicitly instead of waiting for a reload.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.RemoveUser(userID)
	s.bus.PublishCollectionChanged("users", "")
	return nil
}

// RemoveUser drops a user and their messages, transactions, and
// notifications from the mirror.
func (s *Store) RemoveUser(userID string) {
	s.mu.Lock()
	delete(s.users, userID)
	for id, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			delete(s.messages, id)
		}
	}
	for id, t := range s.transactions {
		if t.UserID == userID {
			delete(s.transactions, id)
		}
	}
	for id, n := range s.notifications {
		if n.UserID == userID {
			delete(s.notifications, id)
		}
	}
	s.mu.Unlock()
}

// UpdateUserProfile persists profile edits and mirrors them
func (s *Store) UpdateUserProfile(ctx context.Context, user *database.User) error {
	if err := s.repo.UpdateUserProfile(ctx, user); err != nil {
		return err
	}
	s.ApplyUser(user)
	s.bus.PublishCollectionChanged("users", user.ID)
	return nil
}

// ============================================================================
// Optimistic appliers. Used by services that write through their own
// database transaction and mirror the committed rows afterwards.
// ============================================================================

// ApplyUser mirrors an already-persisted user row
func (s *Store) ApplyUser(user *database.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// ApplyMessage mirrors an already-persisted message
func (s *Store) ApplyMessage(msg *database.Message) {
	s.mu.Lock()
	s.messages[msg.ID] = msg
	s.mu.Unlock()
}

// ApplyTransaction mirrors an already-persisted transaction
func (s *Store) ApplyTransaction(t *database.Transaction) {
	s.mu.Lock()
	s.transactions[t.ID] = t
	s.mu.Unlock()
}

// ApplyNotification mirrors an already-persisted notification
func (s *Store) ApplyNotification(n *database.Notification) {
	s.mu.Lock()
	s.notifications[n.ID] = n
	s.mu.Unlock()
}

func sortMessagesAsc(msgs []*database.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func sortTransactionsDesc(txs []*database.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID < txs[j].ID
	})
}

func sortNotificationsDesc(ns []*database.Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.After(ns[j].CreatedAt)
		}
		return ns[i].ID < ns[j].ID
	})
}
