package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"sweetalert/internal/permanent"
)

// ErrNotFound indicates absent or expired session.
var ErrNotFound = errors.New("session not found")

// Record is the persisted form of one session.
// Params: JSON-encoded values plus flash key bookkeeping.
// Returns: backend payload.
type Record struct {
	Values   map[string]json.RawMessage `json:"values"`
	NewFlash []string                   `json:"new_flash,omitempty"`
	OldFlash []string                   `json:"old_flash,omitempty"`
}

// Store provides session persistence operations.
// Params: load/save/delete by session ID; expiry is backend-specific.
// Returns: backend persistence behavior.
type Store interface {
	Load(ctx context.Context, id string) (Record, error)
	Save(ctx context.Context, id string, record Record) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// encodeRecord serializes record with sorted flash key lists.
// Params: session record.
// Returns: JSON payload or encode error.
func encodeRecord(record Record) ([]byte, error) {
	record.NewFlash = sortedCopy(record.NewFlash)
	record.OldFlash = sortedCopy(record.OldFlash)
	if record.Values == nil {
		record.Values = map[string]json.RawMessage{}
	}
	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return body, nil
}

// decodeRecord parses a stored payload.
// Params: JSON payload from backend.
// Returns: record or permanent decode error.
func decodeRecord(body []byte) (Record, error) {
	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return Record{}, permanent.Errorf("decode session: %w", err)
	}
	if record.Values == nil {
		record.Values = map[string]json.RawMessage{}
	}
	return record, nil
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
