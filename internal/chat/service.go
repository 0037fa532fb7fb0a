// Package chat implements the support conversation between users and the
// single admin identity: message delivery, the lazy welcome message, and
// typing presence.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-support-app/internal/database"
	"trading-support-app/internal/events"
	"trading-support-app/internal/state"
)

var (
	ErrEmptyMessage = errors.New("message text must not be empty")
	ErrNoAdmin      = errors.New("no admin user configured")
)

// Service mediates the support conversation. Every user talks to the one
// admin identity; the admin converses with each user separately.
type Service struct {
	repo           *database.Repository
	store          *state.Store
	bus            *events.EventBus
	logger         zerolog.Logger
	welcomeMessage string

	typingMu  sync.Mutex
	typing    map[string]time.Time // conversation key -> expiry
	typingTTL time.Duration
}

// NewService creates a chat service
func NewService(repo *database.Repository, store *state.Store, bus *events.EventBus, welcomeMessage string, typingTTL time.Duration, logger zerolog.Logger) *Service {
	if typingTTL <= 0 {
		typingTTL = 2 * time.Second
	}
	return &Service{
		repo:           repo,
		store:          store,
		bus:            bus,
		logger:         logger.With().Str("component", "ChatService").Logger(),
		welcomeMessage: welcomeMessage,
		typing:         make(map[string]time.Time),
		typingTTL:      typingTTL,
	}
}

// Conversation returns a user's thread with support, oldest first. An
// empty thread is seeded with the canned welcome message from the admin,
// so the first open always shows a greeting.
func (s *Service) Conversation(ctx context.Context, userID string) ([]*database.Message, error) {
	admin, err := s.adminUser(ctx)
	if err != nil {
		return nil, err
	}

	msgs := s.store.Conversation(userID, admin.ID)
	if len(msgs) > 0 {
		return msgs, nil
	}

	welcome := &database.Message{
		ID:         uuid.New().String(),
		SenderID:   admin.ID,
		ReceiverID: userID,
		Text:       s.welcomeMessage,
	}
	if err := s.store.AddMessage(ctx, welcome); err != nil {
		return nil, err
	}
	notice := &database.Notification{
		ID:      uuid.New().String(),
		UserID:  userID,
		Type:    database.NotifyMessage,
		Title:   "New Message",
		Message: s.welcomeMessage,
	}
	if err := s.store.AddNotification(ctx, notice); err != nil {
		// The welcome message itself is already persisted.
		s.logger.Error().Err(err).Str("user_id", userID).Msg("welcome notification failed")
	}

	s.logger.Debug().Str("user_id", userID).Msg("conversation seeded with welcome message")
	return []*database.Message{welcome}, nil
}

// Send delivers a message from sender to receiver. Messages sent to a
// regular user also raise an inbox notification; messages sent to the
// admin do not.
func (s *Service) Send(ctx context.Context, senderID, receiverID, text string) (*database.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	msg := &database.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
	}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	receiver := s.store.UserByID(receiverID)
	if receiver != nil && !receiver.IsAdmin {
		notice := &database.Notification{
			ID:      uuid.New().String(),
			UserID:  receiverID,
			Type:    database.NotifyMessage,
			Title:   "New Message",
			Message: text,
		}
		if err := s.store.AddNotification(ctx, notice); err != nil {
			s.logger.Error().Err(err).Str("user_id", receiverID).Msg("message notification failed")
		}
	}

	s.ClearTyping(senderID, receiverID)
	return msg, nil
}

// AdminID returns the admin identity's user ID
func (s *Service) AdminID(ctx context.Context) (string, error) {
	admin, err := s.adminUser(ctx)
	if err != nil {
		return "", err
	}
	return admin.ID, nil
}

func (s *Service) adminUser(ctx context.Context) (*database.User, error) {
	for _, u := range s.store.Users() {
		if u.IsAdmin {
			return u, nil
		}
	}
	// Mirror may be cold right after startup.
	admin, err := s.repo.GetAdminUser(ctx)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrNoAdmin
	}
	s.store.ApplyUser(admin)
	return admin, nil
}

// SetTyping records that userID is typing to peerID. The indicator
// expires after the configured TTL unless refreshed.
func (s *Service) SetTyping(userID, peerID string) {
	s.typingMu.Lock()
	s.typing[typingKey(userID, peerID)] = time.Now().Add(s.typingTTL)
	s.typingMu.Unlock()
	s.bus.PublishTyping(userID, peerID, true)
}

// ClearTyping removes the typing indicator immediately
func (s *Service) ClearTyping(userID, peerID string) {
	s.typingMu.Lock()
	key := typingKey(userID, peerID)
	_, active := s.typing[key]
	delete(s.typing, key)
	s.typingMu.Unlock()
	if active {
		s.bus.PublishTyping(userID, peerID, false)
	}
}

// IsTyping reports whether userID has an unexpired typing indicator
// towards peerID.
func (s *Service) IsTyping(userID, peerID string) bool {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()
	expiry, ok := s.typing[typingKey(userID, peerID)]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.typing, typingKey(userID, peerID))
		return false
	}
	return true
}

func typingKey(userID, peerID string) string {
	return userID + "->" + peerID
}
