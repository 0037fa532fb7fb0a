// Package device implements the on-device snapshot store: a namespaced
// JSON key-value file that survives restarts. It emulates a quota-limited
// storage medium; when a write would exceed the quota, oversized list
// collections are trimmed to their most recent entries and the write is
// retried once.
package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TrimKeepCount is how many entries a list collection keeps after a
// quota trim.
const TrimKeepCount = 50

var ErrQuotaExceeded = errors.New("device store quota exceeded")

// listOrder describes whether a collection's newest entries sit at the
// head or the tail of its stored array.
type listOrder int

const (
	newestLast  listOrder = iota // chronological, e.g. chat messages
	newestFirst                  // reverse chronological feeds
)

// trimmable names the collections that may be cut down when the store
// runs out of quota, and where their newest entries live.
var trimmable = map[string]listOrder{
	"messages":      newestLast,
	"notifications": newestFirst,
	"transactions":  newestFirst,
}

// Store is a file-backed key-value store with a serialized-size quota
type Store struct {
	mu        sync.Mutex
	path      string
	namespace string
	quota     int
	data      map[string]json.RawMessage
}

// NewStore opens (or creates) the snapshot store for a namespace
func NewStore(dir, namespace string, quotaBytes int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create device store directory: %w", err)
	}

	s := &Store{
		path:      filepath.Join(dir, namespace+".json"),
		namespace: namespace,
		quota:     quotaBytes,
		data:      make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read device store: %w", err)
	}
	// A corrupt snapshot file is discarded rather than blocking startup.
	if err := json.Unmarshal(raw, &s.data); err != nil {
		s.data = make(map[string]json.RawMessage)
	}
	return s, nil
}

// Set stores a value under key. If the serialized store would exceed the
// quota, every trimmable list collection is cut to its newest
// TrimKeepCount entries and the write is retried once.
func (s *Store) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, hadPrevious := s.data[key]
	s.data[key] = raw

	if s.quota > 0 && s.serializedSize() > s.quota {
		s.trimLists()
		if s.serializedSize() > s.quota {
			// Roll back so the store stays under quota on disk.
			if hadPrevious {
				s.data[key] = previous
			} else {
				delete(s.data, key)
			}
			return ErrQuotaExceeded
		}
	}

	return s.flush()
}

// Get loads the value stored under key into out. The bool reports
// whether the key was present.
func (s *Store) Get(key string, out interface{}) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Delete removes a key
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

// Clear removes every key
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]json.RawMessage)
	return s.flush()
}

// Keys returns the stored keys
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Size returns the current serialized size in bytes
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serializedSize()
}

func (s *Store) serializedSize() int {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return 0
	}
	return len(raw)
}

// trimLists cuts each trimmable list collection to its newest
// TrimKeepCount entries. Keys match a collection name exactly or as a
// "<collection>:<owner>" prefix. Non-array values and short lists are
// left alone.
func (s *Store) trimLists() {
	for key, raw := range s.data {
		order, ok := trimOrder(key)
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			continue
		}
		if len(items) <= TrimKeepCount {
			continue
		}
		if order == newestFirst {
			items = items[:TrimKeepCount]
		} else {
			items = items[len(items)-TrimKeepCount:]
		}
		trimmed, err := json.Marshal(items)
		if err != nil {
			continue
		}
		s.data[key] = trimmed
	}
}

func trimOrder(key string) (listOrder, bool) {
	for collection, order := range trimmable {
		if key == collection || strings.HasPrefix(key, collection+":") {
			return order, true
		}
	}
	return 0, false
}

// flush writes the store to disk atomically
func (s *Store) flush() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode device store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write device store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace device store: %w", err)
	}
	return nil
}
