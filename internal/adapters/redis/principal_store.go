// Package redis provides Redis-based adapters for synergy-web.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synergyaccounting/synergy-web/internal/ports"
)

// DefaultPrefix namespaces principal keys.
const DefaultPrefix = "synergy:principal:"

// PrincipalStore is a Redis-backed durable copy of each visitor's session.
// Entries expire after the configured TTL of inactivity so abandoned visitors
// do not accumulate.
type PrincipalStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// PrincipalStoreOptions groups constructor options.
type PrincipalStoreOptions struct {
	Prefix string
	// TTL of zero keeps entries until they are deleted.
	TTL time.Duration
}

// NewPrincipalStore creates a Redis principal store.
func NewPrincipalStore(client redis.UniversalClient, opts PrincipalStoreOptions) *PrincipalStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &PrincipalStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

// Save writes the snapshot under key, replacing any previous entry and
// restarting its expiry.
func (s *PrincipalStore) Save(ctx context.Context, key string, snap ports.SessionSnapshot) error {
	if key == "" {
		return errors.New("principal key cannot be empty")
	}

	data, err := json.Marshal(storedForm(snap))
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load returns the snapshot under key and slides its expiry forward.
// A missing or corrupt entry is reported as ports.ErrPrincipalNotFound.
func (s *PrincipalStore) Load(ctx context.Context, key string) (ports.SessionSnapshot, error) {
	if key == "" {
		return ports.SessionSnapshot{}, ports.ErrPrincipalNotFound
	}

	data, err := s.get(ctx, s.prefix+key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.SessionSnapshot{}, ports.ErrPrincipalNotFound
		}
		return ports.SessionSnapshot{}, fmt.Errorf("redis get: %w", err)
	}

	var snap ports.SessionSnapshot
	if unmarshalErr := json.Unmarshal(data, &snap); unmarshalErr != nil {
		// A corrupt entry cannot be trusted; drop it and report absence.
		if deleteErr := s.Delete(ctx, key); deleteErr != nil {
			return ports.SessionSnapshot{}, errors.Join(
				fmt.Errorf("unmarshal session snapshot: %w", unmarshalErr),
				fmt.Errorf("cleanup corrupt session snapshot: %w", deleteErr),
			)
		}
		return ports.SessionSnapshot{}, ports.ErrPrincipalNotFound
	}

	return snap, nil
}

// get reads key, resetting its TTL when the store has one. GETEX with a zero
// expiry would PERSIST the key, so TTL-less stores use a plain GET.
func (s *PrincipalStore) get(ctx context.Context, key string) ([]byte, error) {
	if s.ttl > 0 {
		return s.client.GetEx(ctx, key, s.ttl).Bytes()
	}
	return s.client.Get(ctx, key).Bytes()
}

// Delete removes the entry under key. Deleting a missing key is not an error.
func (s *PrincipalStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to delete
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}

// storedForm drops the fields that must not rest in Redis. The mailbox
// password is only ever needed in memory, right after the remote API sent it.
func storedForm(snap ports.SessionSnapshot) ports.SessionSnapshot {
	snap.Principal.EmailPassword = ""
	return snap
}
