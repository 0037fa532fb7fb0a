package chat

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-support-app/internal/events"
	"trading-support-app/internal/state"
)

func newTestService(ttl time.Duration) *Service {
	bus := events.NewEventBus()
	store := state.NewStore(nil, bus, zerolog.Nop())
	return NewService(nil, store, bus, "Welcome to our company! How may we assist you?", ttl, zerolog.Nop())
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	s := newTestService(30 * time.Millisecond)

	s.SetTyping("u1", "admin")
	if !s.IsTyping("u1", "admin") {
		t.Fatal("typing indicator should be active immediately after set")
	}

	time.Sleep(50 * time.Millisecond)
	if s.IsTyping("u1", "admin") {
		t.Error("typing indicator should expire after the TTL")
	}
}

func TestTypingIsDirectional(t *testing.T) {
	s := newTestService(time.Minute)

	s.SetTyping("u1", "admin")
	if s.IsTyping("admin", "u1") {
		t.Error("typing indicator should not apply to the reverse direction")
	}
}

func TestClearTyping(t *testing.T) {
	s := newTestService(time.Minute)

	s.SetTyping("u1", "admin")
	s.ClearTyping("u1", "admin")
	if s.IsTyping("u1", "admin") {
		t.Error("typing indicator should be gone after clear")
	}
}

func TestTypingRefreshExtendsExpiry(t *testing.T) {
	s := newTestService(40 * time.Millisecond)

	s.SetTyping("u1", "admin")
	time.Sleep(25 * time.Millisecond)
	s.SetTyping("u1", "admin")
	time.Sleep(25 * time.Millisecond)
	if !s.IsTyping("u1", "admin") {
		t.Error("refreshed typing indicator should still be active")
	}
}
