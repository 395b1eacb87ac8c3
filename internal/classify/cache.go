package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes classifications. It is a performance aid only; a miss or
// a failing backend never changes the result.
type Cache interface {
	Get(ctx context.Context, key string) (*Record, bool)
	Set(ctx context.Context, key string, rec *Record)
}

// DefaultMemoryCacheSize bounds a MemoryCache built by NewMemoryCache.
const DefaultMemoryCacheSize = 5000

// MemoryCache is a process-local Cache holding at most limit records.
// Once full, the oldest inserted key is evicted first.
type MemoryCache struct {
	mu      sync.Mutex
	limit   int
	records map[string]*Record
	order   []string
}

func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheSize(DefaultMemoryCacheSize)
}

// NewMemoryCacheSize returns a MemoryCache holding at most limit records.
// A limit below one falls back to DefaultMemoryCacheSize.
func NewMemoryCacheSize(limit int) *MemoryCache {
	if limit < 1 {
		limit = DefaultMemoryCacheSize
	}
	return &MemoryCache{limit: limit, records: make(map[string]*Record)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

func (m *MemoryCache) Set(_ context.Context, key string, rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		for len(m.order) >= m.limit {
			delete(m.records, m.order[0])
			m.order = m.order[1:]
		}
		m.order = append(m.order, key)
	}
	m.records[key] = rec.clone()
}

// Len returns the number of cached records.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

const redisKeyPrefix = "tokohwatch:classify:"

// RedisCache shares classifications between processes through Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at rawURL
// (redis://[:password@]host:port/db).
func NewRedisCache(rawURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (*Record, bool) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("Redis cache get failed: %v", err)
		}
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("Discarding corrupt cache entry %s: %v", key, err)
		return nil, false
	}
	return &rec, true
}

func (r *RedisCache) Set(ctx context.Context, key string, rec *Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		log.Printf("Redis cache set failed: %v", err)
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
