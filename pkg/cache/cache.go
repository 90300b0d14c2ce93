// Package cache provides a Redis-backed TTL cache for static hotel detail.
// Hotel descriptions, amenities, and room groups change rarely compared to
// rates, so details are cached per (hotel id, language) and served ahead of
// the provider on the detail path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stayscout/ota-client/pkg/provider"
)

var (
	// ErrMiss indicates the requested key was not found or has expired.
	ErrMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultTTL is how long a cached hotel detail stays fresh.
const DefaultTTL = 24 * time.Hour

// Key identifies one cached hotel detail. Details are language dependent, so
// the language code is part of the identity.
type Key struct {
	HotelID  string
	Language string
}

// String generates a deterministic Redis key.
// Format: ota:hotel:<id>:<language>
func (k Key) String() string {
	language := k.Language
	if language == "" {
		language = "en"
	}
	return fmt.Sprintf("ota:hotel:%s:%s", k.HotelID, language)
}

// Entry is the stored form of one hotel detail.
type Entry struct {
	Detail   provider.HotelInfo `json:"detail"`
	CachedAt time.Time          `json:"cached_at"`
	Expires  time.Time          `json:"expires"`
}

// IsExpired returns true if the entry has outlived its TTL.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Store handles hotel detail caching with a Redis backend.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a cache store. A non-positive ttl falls back to
// DefaultTTL.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get retrieves a cached hotel detail.
// Returns ErrMiss if the key doesn't exist or the entry has expired.
func (s *Store) Get(ctx context.Context, key Key) (*provider.HotelInfo, error) {
	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheMisses.Inc()
			return nil, ErrMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis TTL normally evicts first; the stored expiry is the backstop.
	if entry.IsExpired() {
		_ = s.Delete(ctx, key)
		cacheMisses.Inc()
		return nil, ErrMiss
	}

	cacheHits.Inc()
	return &entry.Detail, nil
}

// Set stores a hotel detail under the store's TTL.
func (s *Store) Set(ctx context.Context, key Key, detail *provider.HotelInfo) error {
	if detail == nil {
		return fmt.Errorf("hotel detail cannot be nil")
	}

	now := time.Now()
	entry := Entry{
		Detail:   *detail,
		CachedAt: now,
		Expires:  now.Add(s.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), data, s.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	cacheSize.Add(float64(len(data)))
	return nil
}

// Delete removes a cached hotel detail.
func (s *Store) Delete(ctx context.Context, key Key) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
