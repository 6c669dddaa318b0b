// Package redisstore keeps session history in Redis sorted sets, one
// key per session, scored by append order and expired by TTL.
package redisstore

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/deanmachines/foundry/memory"
	"github.com/deanmachines/foundry/pkg/uuidx"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/sjson"
)

// Commands is the slice of the Redis API the store needs. Satisfied by
// *redis.Client and fakeable in tests.
type Commands interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ memory.Store = (*Store)(nil)

// Store is a Redis-backed memory.Store.
type Store struct {
	client    Commands
	keyPrefix string
	ttl       time.Duration
}

// New creates a store on an existing client. A zero ttl disables
// expiry.
func New(client Commands, keyPrefix string, ttl time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = "foundry:memory"
	}
	return &Store{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Open connects to the given Redis URL and returns a store on it.
func Open(redisURL, keyPrefix string, ttl time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return New(redis.NewClient(opt), keyPrefix, ttl), nil
}

func (s *Store) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:messages", s.keyPrefix, sessionID)
}

func (s *Store) Append(ctx context.Context, sessionID string, entry memory.Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serialize entry: %w", err)
	}

	// Sorted-set members are unique, so two identical entries would
	// collapse into one. A per-append id keeps every member distinct;
	// History ignores the extra field on unmarshal.
	value, err = sjson.SetBytes(value, "id", uuidx.NewString())
	if err != nil {
		return fmt.Errorf("serialize entry: %w", err)
	}

	key := s.sessionKey(sessionID)
	score := float64(time.Now().UnixNano())
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: string(value)}).Err(); err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}

	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("set ttl on %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]memory.Entry, error) {
	key := s.sessionKey(sessionID)

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	values, err := s.client.ZRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", key, err)
	}

	entries := make([]memory.Entry, 0, len(values))
	for _, value := range values {
		var entry memory.Entry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			// skip entries written by incompatible versions
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear %s: %w", s.sessionKey(sessionID), err)
	}
	return nil
}
