package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory for single-instance mode.
// Params: encoded records with idle expiry and injected clock.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	body      []byte
	expiresAt time.Time
}

// NewMemoryStore creates in-memory session store.
// Params: now function (defaults to time.Now when nil) and idle TTL (0 keeps forever).
// Returns: initialized in-memory store.
func NewMemoryStore(now func() time.Time, ttl time.Duration) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:     now,
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

// Load returns the stored record when present and not expired.
// Params: session ID.
// Returns: record, ErrNotFound, or permanent decode error.
func (s *MemoryStore) Load(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	if s.expired(entry) {
		s.mu.Lock()
		if current, ok := s.entries[id]; ok && s.expired(current) {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return Record{}, ErrNotFound
	}
	return decodeRecord(entry.body)
}

// Save writes the record and restarts its idle TTL.
// Params: session ID and record.
// Returns: encode error.
func (s *MemoryStore) Save(_ context.Context, id string, record Record) error {
	body, err := encodeRecord(record)
	if err != nil {
		return err
	}
	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{body: body, expiresAt: expiresAt}
	return nil
}

// Delete removes one session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Sweep drops expired sessions.
// Params: none.
// Returns: number of removed sessions.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close releases memory store resources.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}
