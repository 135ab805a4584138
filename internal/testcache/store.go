package testcache

import (
	"errors"
	"sync"
)

// ErrDigestNotFound is returned when a staged path carries no recognizable digest suffix.
var ErrDigestNotFound = errors.New("digest not found in staged path")

// Store remembers the last outcome recorded for each digest.
// Implementations must be safe for concurrent use.
type Store interface {
	// NeedsExecution reports whether digest has never been recorded or last failed.
	NeedsExecution(digest string) bool

	// HasRunBefore reports whether any outcome was ever recorded for digest.
	HasRunBefore(digest string) bool

	// RecordOutcome stores passed as the latest outcome for digest. Last write wins.
	RecordOutcome(digest string, passed bool) error

	// Len returns the number of digests with a recorded outcome.
	Len() int

	// Summary returns how many digests last passed and last failed.
	Summary() (passed, failed int)

	// Close releases the store. Recorded outcomes are discarded.
	Close() error
}

// MemoryStore is a Store backed by a map.
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		outcomes: make(map[string]bool),
	}
}

// NeedsExecution reports whether digest is unseen or last failed.
func (s *MemoryStore) NeedsExecution(digest string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	passed, ok := s.outcomes[digest]
	return !ok || !passed
}

// HasRunBefore reports whether digest has a recorded outcome.
func (s *MemoryStore) HasRunBefore(digest string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.outcomes[digest]
	return ok
}

// RecordOutcome upserts the outcome for digest.
func (s *MemoryStore) RecordOutcome(digest string, passed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes[digest] = passed
	return nil
}

// Len returns the number of recorded digests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.outcomes)
}

// Summary counts passed and failed digests.
func (s *MemoryStore) Summary() (passed, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ok := range s.outcomes {
		if ok {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Close drops every recorded outcome.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes = make(map[string]bool)
	return nil
}
