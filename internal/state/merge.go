package state

import "time"

// mergeRecords reconciles a remote snapshot into the local mirror.
// The merge is deterministic: records are matched by id, and when both
// sides carry the same id the one with the later timestamp wins (ties
// keep the remote copy, the authoritative side). Local-only records
// survive so optimistic writes are not lost while their change event is
// still in flight.
func mergeRecords[T any](local map[string]T, remote []T, key func(T) string, stamp func(T) time.Time) map[string]T {
	merged := make(map[string]T, len(remote)+len(local))
	for _, r := range remote {
		merged[key(r)] = r
	}
	for id, l := range local {
		existing, ok := merged[id]
		if !ok {
			merged[id] = l
			continue
		}
		if stamp(l).After(stamp(existing)) {
			merged[id] = l
		}
	}
	return merged
}
