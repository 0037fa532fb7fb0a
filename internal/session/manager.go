// Package session ties a logged-in user to their snapshotted state. A
// snapshot of the user's profile, conversation, transactions, and
// notifications is written to the device store and to redis on every
// relevant change, so a restarted client rehydrates instantly and then
// reconciles against the database.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trading-support-app/internal/cache"
	"trading-support-app/internal/database"
	"trading-support-app/internal/device"
	"trading-support-app/internal/events"
	"trading-support-app/internal/state"
)

const snapshotTimeout = 5 * time.Second

// Snapshot is the persisted per-user view of the world
type Snapshot struct {
	User          *database.User           `json:"user"`
	Messages      []*database.Message      `json:"messages"`
	Transactions  []*database.Transaction  `json:"transactions"`
	Notifications []*database.Notification `json:"notifications"`
	SavedAt       time.Time                `json:"saved_at"`
}

// Manager maintains session snapshots for active users
type Manager struct {
	store   *state.Store
	devices *device.Store
	cache   *cache.CacheService
	bus     *events.EventBus
	logger  zerolog.Logger
	adminID func(ctx context.Context) (string, error)
}

// NewManager creates a session manager. adminID resolves the support
// identity so the snapshot can include the user's conversation.
func NewManager(store *state.Store, devices *device.Store, cacheService *cache.CacheService, bus *events.EventBus, adminID func(ctx context.Context) (string, error), logger zerolog.Logger) *Manager {
	return &Manager{
		store:   store,
		devices: devices,
		cache:   cacheService,
		bus:     bus,
		logger:  logger.With().Str("component", "SessionManager").Logger(),
		adminID: adminID,
	}
}

// Start wires the manager to the event bus: logins and collection
// changes refresh the owner's snapshot, logouts drop it.
func (m *Manager) Start() {
	m.bus.Subscribe(events.EventUserLogin, func(e events.Event) {
		if userID, ok := e.Data["user_id"].(string); ok {
			m.refresh(userID)
		}
	})
	m.bus.Subscribe(events.EventUserLogout, func(e events.Event) {
		if userID, ok := e.Data["user_id"].(string); ok {
			m.drop(userID)
		}
	})
	for _, t := range []events.EventType{
		events.EventUsersChanged,
		events.EventMessagesChanged,
		events.EventTransactionsChanged,
		events.EventNotificationsChanged,
	} {
		m.bus.Subscribe(t, func(e events.Event) {
			userID, _ := e.Data["user_id"].(string)
			if userID != "" {
				m.refresh(userID)
			}
		})
	}
}

func (m *Manager) refresh(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := m.Save(ctx, userID); err != nil {
		m.logger.Error().Err(err).Str("user_id", userID).Msg("snapshot refresh failed")
	}
}

func (m *Manager) drop(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := m.Clear(ctx, userID); err != nil {
		m.logger.Error().Err(err).Str("user_id", userID).Msg("snapshot clear failed")
	}
}

// Save captures the user's current mirrored state and persists it to the
// device store and redis.
func (m *Manager) Save(ctx context.Context, userID string) error {
	user := m.store.UserByID(userID)
	if user == nil {
		return nil
	}

	snap := m.Build(ctx, user)

	if err := m.devices.Set(deviceKey(userID, "user"), snap.User); err != nil {
		return err
	}
	if err := m.devices.Set(deviceKey(userID, "messages"), snap.Messages); err != nil {
		return err
	}
	if err := m.devices.Set(deviceKey(userID, "transactions"), snap.Transactions); err != nil {
		return err
	}
	if err := m.devices.Set(deviceKey(userID, "notifications"), snap.Notifications); err != nil {
		return err
	}

	if err := m.cache.SetJSON(ctx, cache.SessionSnapshotKey(userID), snap, cache.DefaultSnapshotTTL); err != nil {
		// Redis is an accelerator; the device store already has the data.
		m.logger.Warn().Err(err).Str("user_id", userID).Msg("snapshot cache write failed")
	}
	return nil
}

// Build assembles a snapshot from the mirror without persisting it
func (m *Manager) Build(ctx context.Context, user *database.User) *Snapshot {
	snap := &Snapshot{
		User:          user,
		Transactions:  m.store.UserTransactions(user.ID),
		Notifications: m.store.UserNotifications(user.ID),
		SavedAt:       time.Now(),
	}
	if adminID, err := m.adminID(ctx); err == nil {
		snap.Messages = m.store.Conversation(user.ID, adminID)
	}
	return snap
}

// Load returns the cached snapshot for a user, falling back from redis
// to the device store. Returns nil when no snapshot exists.
func (m *Manager) Load(ctx context.Context, userID string) (*Snapshot, error) {
	var snap Snapshot
	err := m.cache.GetJSON(ctx, cache.SessionSnapshotKey(userID), &snap)
	if err == nil {
		return &snap, nil
	}
	if !cache.IsCacheMiss(err) {
		m.logger.Warn().Err(err).Str("user_id", userID).Msg("snapshot cache read failed")
	}

	snap = Snapshot{}
	found, err := m.devices.Get(deviceKey(userID, "user"), &snap.User)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if _, err := m.devices.Get(deviceKey(userID, "messages"), &snap.Messages); err != nil {
		return nil, err
	}
	if _, err := m.devices.Get(deviceKey(userID, "transactions"), &snap.Transactions); err != nil {
		return nil, err
	}
	if _, err := m.devices.Get(deviceKey(userID, "notifications"), &snap.Notifications); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Clear removes a user's snapshot from both tiers
func (m *Manager) Clear(ctx context.Context, userID string) error {
	for _, k := range []string{"user", "messages", "transactions", "notifications"} {
		if err := m.devices.Delete(deviceKey(userID, k)); err != nil {
			return err
		}
	}
	return m.cache.Delete(ctx, cache.SessionSnapshotKey(userID))
}

func deviceKey(userID, collection string) string {
	if collection == "user" {
		return "user:" + userID
	}
	return collection + ":" + userID
}
