// Package intel maintains the indicator-of-compromise store used to
// enrich domain risk events, fed from plain-text blocklist feeds.
package intel

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/metrics"
)

// IOC is one indicator: currently domain indicators only.
type IOC struct {
	Value      string    `json:"value"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Store holds indicators with a retention TTL.
type Store interface {
	Upsert(ctx context.Context, iocs []IOC) error
	MatchDomain(ctx context.Context, domain string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// MemoryStore keeps indicators in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]time.Time
	retention time.Duration
}

// NewMemoryStore creates an in-memory IOC store with the given retention.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]time.Time),
		retention: retention,
	}
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, iocs []IOC) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry := time.Now().Add(s.retention)
	for _, ioc := range iocs {
		s.entries[strings.ToLower(ioc.Value)] = expiry
	}
	metrics.IOCsLoaded.Set(float64(len(s.entries)))
	return nil
}

// MatchDomain implements Store. The domain and each of its parent domains
// are checked, so an indicator for example.com matches evil.example.com.
func (s *MemoryStore) MatchDomain(_ context.Context, domain string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	for _, candidate := range parentChain(domain) {
		if expiry, ok := s.entries[candidate]; ok && now.Before(expiry) {
			return true, nil
		}
	}
	return false, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

const redisIOCPrefix = "orion:intel:domain:"

// RedisStore keeps indicators in Redis so they survive restarts and can
// be shared with other tooling. Redis handles expiry via per-key TTLs.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore creates a Redis-backed IOC store.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

// Upsert implements Store.
func (s *RedisStore) Upsert(ctx context.Context, iocs []IOC) error {
	pipe := s.client.Pipeline()
	for _, ioc := range iocs {
		pipe.Set(ctx, redisIOCPrefix+strings.ToLower(ioc.Value), ioc.Source, s.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if count, err := s.Count(ctx); err == nil {
		metrics.IOCsLoaded.Set(float64(count))
	}
	return nil
}

// MatchDomain implements Store.
func (s *RedisStore) MatchDomain(ctx context.Context, domain string) (bool, error) {
	keys := make([]string, 0, 4)
	for _, candidate := range parentChain(domain) {
		keys = append(keys, redisIOCPrefix+candidate)
	}
	hits, err := s.client.Exists(ctx, keys...).Result()
	if err != nil {
		return false, err
	}
	return hits > 0, nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	keys, err := s.client.Keys(ctx, redisIOCPrefix+"*").Result()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// parentChain returns the domain and each registrable parent, lowercased:
// a.b.example.com -> [a.b.example.com, b.example.com, example.com].
func parentChain(domain string) []string {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	parts := strings.Split(domain, ".")

	var chain []string
	for i := 0; i <= len(parts)-2; i++ {
		chain = append(chain, strings.Join(parts[i:], "."))
	}
	if len(chain) == 0 && domain != "" {
		chain = append(chain, domain)
	}
	return chain
}
