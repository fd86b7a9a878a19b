package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Session is one user's key-value state for the current request.
// Flashed keys are visible until the end of the next request.
type Session struct {
	mu       sync.Mutex
	id       string
	fresh    bool
	values   map[string]json.RawMessage
	newFlash map[string]struct{}
	oldFlash map[string]struct{}
}

// newSession builds a session from a loaded record.
// Params: session ID, record, and whether the ID was just issued.
// Returns: mutable request session.
func newSession(id string, record Record, fresh bool) *Session {
	s := &Session{
		id:       id,
		fresh:    fresh,
		values:   make(map[string]json.RawMessage, len(record.Values)),
		newFlash: toSet(record.NewFlash),
		oldFlash: toSet(record.OldFlash),
	}
	for key, value := range record.Values {
		s.values[key] = value
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Fresh reports whether the session was issued during this request.
func (s *Session) Fresh() bool {
	return s.fresh
}

// Get returns the raw JSON value of key.
// Params: session key.
// Returns: value and presence flag.
func (s *Session) Get(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// Decode unmarshals the value of key into dst.
// Params: session key and destination pointer.
// Returns: ErrNotFound when absent or decode error.
func (s *Session) Decode(key string, dst any) error {
	value, ok := s.Get(key)
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("decode session key %q: %w", key, err)
	}
	return nil
}

// Keys returns stored keys in sorted order.
func (s *Session) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Put stores value under key until removed.
// Params: session key and JSON-encodable value.
// Returns: encode error.
func (s *Session) Put(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode session key %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = encoded
	return nil
}

// Flash stores value for the current and the next request.
// Params: context (unused by the in-memory session), key, and JSON-encodable value.
// Returns: encode error.
func (s *Session) Flash(_ context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode flash key %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = encoded
	s.newFlash[key] = struct{}{}
	delete(s.oldFlash, key)
	return nil
}

// Remove deletes key and every nested "key." entry.
// Params: context (unused by the in-memory session) and key or namespace.
// Returns: nil.
func (s *Session) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := key + "."
	for existing := range s.values {
		if existing != key && !strings.HasPrefix(existing, prefix) {
			continue
		}
		delete(s.values, existing)
		delete(s.newFlash, existing)
		delete(s.oldFlash, existing)
	}
	return nil
}

// Reflash keeps every flashed value for one more request.
func (s *Session) Reflash() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.oldFlash {
		s.newFlash[key] = struct{}{}
	}
	s.oldFlash = make(map[string]struct{})
}

// Keep retains the given flashed keys for one more request.
func (s *Session) Keep(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if _, ok := s.oldFlash[key]; !ok {
			continue
		}
		delete(s.oldFlash, key)
		s.newFlash[key] = struct{}{}
	}
}

// AgeFlashData ends the current request's flash cycle.
// Values flashed during the previous request are dropped; values flashed now become old.
func (s *Session) AgeFlashData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.oldFlash {
		delete(s.values, key)
	}
	s.oldFlash = s.newFlash
	s.newFlash = make(map[string]struct{})
}

// Empty reports whether the session holds no values.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values) == 0
}

// Record snapshots the session for persistence.
func (s *Session) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(map[string]json.RawMessage, len(s.values))
	for key, value := range s.values {
		values[key] = value
	}
	return Record{
		Values:   values,
		NewFlash: fromSet(s.newFlash),
		OldFlash: fromSet(s.oldFlash),
	}
}

func (s *Session) markStored() {
	s.mu.Lock()
	s.fresh = false
	s.mu.Unlock()
}

func toSet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		out[key] = struct{}{}
	}
	return out
}

func fromSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
