package state

import (
	"testing"
	"time"

	"trading-support-app/internal/database"
)

func userAt(id string, updated time.Time, name string) *database.User {
	return &database.User{ID: id, Name: name, UpdatedAt: updated}
}

func TestMergeRemoteWinsOnEqualStamp(t *testing.T) {
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	local := map[string]*database.User{
		"u1": userAt("u1", stamp, "local"),
	}
	remote := []*database.User{userAt("u1", stamp, "remote")}

	merged := mergeRecords(local, remote,
		func(u *database.User) string { return u.ID },
		func(u *database.User) time.Time { return u.UpdatedAt })

	if merged["u1"].Name != "remote" {
		t.Errorf("equal stamps should prefer the remote snapshot, got %q", merged["u1"].Name)
	}
}

func TestMergeNewerLocalSurvives(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	local := map[string]*database.User{
		"u1": userAt("u1", base.Add(time.Second), "local-newer"),
	}
	remote := []*database.User{userAt("u1", base, "remote-stale")}

	merged := mergeRecords(local, remote,
		func(u *database.User) string { return u.ID },
		func(u *database.User) time.Time { return u.UpdatedAt })

	if merged["u1"].Name != "local-newer" {
		t.Errorf("strictly newer local record should win, got %q", merged["u1"].Name)
	}
}

func TestMergeLocalOnlyRecordsSurvive(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	local := map[string]*database.User{
		"pending": userAt("pending", base, "optimistic"),
	}
	remote := []*database.User{userAt("u2", base, "remote")}

	merged := mergeRecords(local, remote,
		func(u *database.User) string { return u.ID },
		func(u *database.User) time.Time { return u.UpdatedAt })

	if len(merged) != 2 {
		t.Fatalf("expected 2 records after merge, got %d", len(merged))
	}
	if merged["pending"] == nil {
		t.Error("optimistic local-only record dropped by merge")
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	local := map[string]*database.User{
		"a": userAt("a", base.Add(2*time.Second), "a-local"),
		"b": userAt("b", base, "b-local"),
		"c": userAt("c", base, "c-local"),
	}
	remote := []*database.User{
		userAt("a", base, "a-remote"),
		userAt("b", base.Add(time.Second), "b-remote"),
		userAt("d", base, "d-remote"),
	}

	key := func(u *database.User) string { return u.ID }
	stamp := func(u *database.User) time.Time { return u.UpdatedAt }

	first := mergeRecords(local, remote, key, stamp)
	for i := 0; i < 10; i++ {
		again := mergeRecords(local, remote, key, stamp)
		if len(again) != len(first) {
			t.Fatalf("merge size varied between runs: %d vs %d", len(again), len(first))
		}
		for id, u := range first {
			got := again[id]
			if got == nil || got.Name != u.Name {
				t.Fatalf("merge result for %s varied between runs", id)
			}
		}
	}

	if first["a"].Name != "a-local" {
		t.Errorf("newer local record for a should win, got %q", first["a"].Name)
	}
	if first["b"].Name != "b-remote" {
		t.Errorf("newer remote record for b should win, got %q", first["b"].Name)
	}
	if first["c"].Name != "c-local" {
		t.Errorf("local-only record for c should survive, got %q", first["c"].Name)
	}
	if first["d"].Name != "d-remote" {
		t.Errorf("remote-only record for d should be adopted, got %q", first["d"].Name)
	}
}
