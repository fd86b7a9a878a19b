package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sweetalert/internal/config"

	"github.com/nats-io/nats.go"
)

// NATSStore persists sessions in a JetStream KV bucket.
// Params: NATS connection and KV bucket handle; bucket TTL bounds session idle lifetime.
// Returns: KV-backed session store implementation.
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSStore opens (or creates) the session bucket.
// Params: NATS session settings.
// Returns: initialized NATS store or setup error.
func NewNATSStore(settings config.NATSSessionConfig) (*NATSStore, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if err != nil {
		if !settings.AllowCreateBucket {
			nc.Close()
			return nil, fmt.Errorf("open session bucket %q: %w", settings.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  settings.Bucket,
			TTL:     settings.TTL,
			History: 1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create session bucket %q: %w", settings.Bucket, err)
		}
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// Load reads one session record.
// Params: session ID key.
// Returns: record, ErrNotFound, or read/decode error.
func (s *NATSStore) Load(_ context.Context, id string) (Record, error) {
	entry, err := s.kv.Get(id)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get session: %w", err)
	}
	return decodeRecord(entry.Value())
}

// Save writes one session record; the put refreshes the bucket TTL.
// Params: session ID key and record.
// Returns: encode or put error.
func (s *NATSStore) Save(_ context.Context, id string, record Record) error {
	body, err := encodeRecord(record)
	if err != nil {
		return err
	}
	if _, err := s.kv.Put(id, body); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete removes one session record.
func (s *NATSStore) Delete(_ context.Context, id string) error {
	if err := s.kv.Delete(id); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes underlying NATS connection.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}
