package auth

import (
	"context"
	"regexp"
	"testing"
)

func TestGenerateTradingIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^#TRD-\d{6}$`)
	for i := 0; i < 100; i++ {
		id := GenerateTradingID("#TRD-")
		if !pattern.MatchString(id) {
			t.Fatalf("trading ID %q does not match expected format", id)
		}
	}
}

func TestGenerateTradingIDCustomPrefix(t *testing.T) {
	id := GenerateTradingID("#ACME-")
	pattern := regexp.MustCompile(`^#ACME-\d{6}$`)
	if !pattern.MatchString(id) {
		t.Errorf("trading ID %q does not carry the configured prefix", id)
	}
}

func TestGenerateTradingIDNoLeadingZeroTruncation(t *testing.T) {
	// The digit block is always six characters, even for low random draws.
	for i := 0; i < 1000; i++ {
		id := GenerateTradingID("")
		if len(id) != 6 {
			t.Fatalf("digit block has %d characters: %q", len(id), id)
		}
	}
}

func TestRevocationCacheIsOptional(t *testing.T) {
	svc := NewService(nil, nil, nil, Config{JWTSecret: "test-secret-for-auth-only"})

	// Without redis the fast path reports nothing revoked and marking
	// is a no-op; the database check still guards refreshes.
	if svc.isTokenRevoked(context.Background(), "deadbeef") {
		t.Error("nil cache must never report a token revoked")
	}
	svc.markTokenRevoked(context.Background(), "deadbeef")
}
