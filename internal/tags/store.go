// Package tags keeps the session-scoped set of tag IDs already shown to the operator.
package tags

import (
	"strings"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/syncutil"
)

type Store struct {
	mu   syncutil.RWMutex
	seen map[string]struct{}
}

func New() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// Observe records the batch and returns only the records not seen before, in batch order.
// Duplicates inside the batch are reported once. IDs are compared exactly as
// reported; blank IDs are skipped.
func (s *Store) Observe(batch []driver.TagRecord) []driver.TagRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []driver.TagRecord
	for _, rec := range batch {
		id := rec.TagID
		if blank(id) {
			continue
		}
		if _, exists := s.seen[id]; exists {
			continue
		}
		s.seen[id] = struct{}{}
		fresh = append(fresh, rec)
	}
	return fresh
}

func (s *Store) Has(id string) bool {
	if blank(id) {
		return false
	}
	s.mu.RLock()
	_, ok := s.seen[id]
	s.mu.RUnlock()
	return ok
}

func (s *Store) Size() int {
	s.mu.RLock()
	size := len(s.seen)
	s.mu.RUnlock()
	return size
}

// Reset forgets everything; called when inventory is restarted.
func (s *Store) Reset() {
	s.mu.Lock()
	s.seen = make(map[string]struct{})
	s.mu.Unlock()
}

func blank(id string) bool {
	return strings.TrimSpace(id) == ""
}
