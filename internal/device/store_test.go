package device

import (
	"fmt"
	"testing"
)

type entry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func manyEntries(n int) []entry {
	out := make([]entry, n)
	for i := range out {
		out[i] = entry{ID: fmt.Sprintf("e%04d", i), Text: "payload payload payload"}
	}
	return out
}

func TestSetAndGetRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir(), "test", 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Set("profile", map[string]string{"name": "Ada"}); err != nil {
		t.Fatal(err)
	}

	var got map[string]string
	found, err := s.Get("profile", &got)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("key not found after set")
	}
	if got["name"] != "Ada" {
		t.Errorf("got %q, want Ada", got["name"])
	}
}

func TestGetMissingKey(t *testing.T) {
	s, err := NewStore(t.TempDir(), "test", 0)
	if err != nil {
		t.Fatal(err)
	}

	var out entry
	found, err := s.Get("absent", &out)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("missing key reported as found")
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "test", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("session", "tok-123"); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(dir, "test", 0)
	if err != nil {
		t.Fatal(err)
	}
	var tok string
	found, err := reopened.Get("session", &tok)
	if err != nil || !found {
		t.Fatalf("session missing after reopen: found=%v err=%v", found, err)
	}
	if tok != "tok-123" {
		t.Errorf("got %q after reopen", tok)
	}
}

func TestQuotaTrimsListsToFifty(t *testing.T) {
	s, err := NewStore(t.TempDir(), "test", 6*1024)
	if err != nil {
		t.Fatal(err)
	}

	// 500 entries won't fit in 6KB; the write must succeed by trimming.
	if err := s.Set("messages", manyEntries(500)); err != nil {
		t.Fatalf("set should succeed after trim, got %v", err)
	}

	var msgs []entry
	if _, err := s.Get("messages", &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != TrimKeepCount {
		t.Fatalf("expected %d entries after trim, got %d", TrimKeepCount, len(msgs))
	}
	// Messages are chronological, so the newest (highest-numbered) survive.
	if msgs[len(msgs)-1].ID != "e0499" {
		t.Errorf("newest entry missing after trim, tail is %s", msgs[len(msgs)-1].ID)
	}
	if msgs[0].ID != "e0450" {
		t.Errorf("trim should keep the newest 50, head is %s", msgs[0].ID)
	}
}

func TestQuotaTrimKeepsNewestFirstCollections(t *testing.T) {
	s, err := NewStore(t.TempDir(), "test", 6*1024)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Set("notifications", manyEntries(500)); err != nil {
		t.Fatalf("set should succeed after trim, got %v", err)
	}

	var ns []entry
	if _, err := s.Get("notifications", &ns); err != nil {
		t.Fatal(err)
	}
	if len(ns) != TrimKeepCount {
		t.Fatalf("expected %d entries after trim, got %d", TrimKeepCount, len(ns))
	}
	// Notification feeds store newest first, so the head survives.
	if ns[0].ID != "e0000" {
		t.Errorf("head of newest-first feed should survive trim, got %s", ns[0].ID)
	}
}

func TestQuotaExceededAfterTrim(t *testing.T) {
	s, err := NewStore(t.TempDir(), "test", 256)
	if err != nil {
		t.Fatal(err)
	}

	// A single untrimmable value bigger than the quota must be refused.
	big := make([]byte, 1024)
	err = s.Set("avatar", big)
	if err != ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// The failed write must not leave the key behind.
	var out []byte
	found, _ := s.Get("avatar", &out)
	if found {
		t.Error("rejected write left data in the store")
	}
}
