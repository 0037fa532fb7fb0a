package api

import (
	"testing"

	"github.com/rs/zerolog"

	"trading-support-app/internal/events"
)

func TestClientCloseIsIdempotent(t *testing.T) {
	client := &WSClient{
		send:      make(chan []byte, 1),
		closeChan: make(chan struct{}),
	}

	client.close()
	client.close()

	select {
	case <-client.closeChan:
	default:
		t.Fatal("expected closeChan to be closed")
	}
}

func TestDisconnectUserAfterClientClosed(t *testing.T) {
	hub := NewWSHub(events.NewEventBus(), zerolog.Nop())

	client := &WSClient{
		send:      make(chan []byte, 1),
		hub:       hub,
		userID:    "u1",
		closeChan: make(chan struct{}),
	}
	hub.mu.Lock()
	hub.clients[client] = true
	hub.userClients[client.userID] = []*WSClient{client}
	hub.mu.Unlock()

	// Read pump already tore the client down; logout must still settle
	// without a second close.
	client.close()
	hub.DisconnectUser("u1")

	if got := hub.GetClientCount(); got != 0 {
		t.Fatalf("expected 0 clients after disconnect, got %d", got)
	}
	if _, ok := hub.userClients["u1"]; ok {
		t.Fatal("expected user connection list to be dropped")
	}
}
