package cache

import "testing"

func TestSessionSnapshotKey(t *testing.T) {
	if got := SessionSnapshotKey("u1"); got != "session:u1:snapshot" {
		t.Errorf("unexpected snapshot key %q", got)
	}
}

func TestRevokedTokenKey(t *testing.T) {
	if got := RevokedTokenKey("abc123"); got != "token:revoked:abc123" {
		t.Errorf("unexpected revocation key %q", got)
	}
}
