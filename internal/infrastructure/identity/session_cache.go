package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Raulito1/collections-web/internal/domain/session"
)

// SessionCache persists the stored session between process restarts.
// This is the only durable state the application keeps.
type SessionCache interface {
	// Load returns the persisted session, or nil when none is stored.
	Load(ctx context.Context) (*session.Session, error)
	// Save persists a session, replacing any previous one.
	Save(ctx context.Context, sess *session.Session) error
	// Clear removes the persisted session.
	Clear(ctx context.Context) error
}

const sessionKey = "collections:session"

// RedisSessionCache stores the session as JSON under a single key, with
// a TTL matching the refresh credential's useful life.
type RedisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisSessionCacheConfig holds Redis connection settings.
type RedisSessionCacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisSessionCache connects to Redis and verifies the connection.
func NewRedisSessionCache(cfg RedisSessionCacheConfig) (*RedisSessionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis for session cache: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisSessionCache{client: client, ttl: ttl}, nil
}

// NewRedisSessionCacheWithClient wraps an existing client; used in tests.
func NewRedisSessionCacheWithClient(client *redis.Client, ttl time.Duration) *RedisSessionCache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisSessionCache{client: client, ttl: ttl}
}

func (c *RedisSessionCache) Load(ctx context.Context) (*session.Session, error) {
	data, err := c.client.Get(ctx, sessionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *RedisSessionCache) Save(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return c.Clear(ctx)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey, data, c.ttl).Err()
}

func (c *RedisSessionCache) Clear(ctx context.Context) error {
	return c.client.Del(ctx, sessionKey).Err()
}

// MemorySessionCache keeps the session in process memory; used when no
// Redis is configured, and in tests.
type MemorySessionCache struct {
	mu   sync.RWMutex
	sess *session.Session
}

// NewMemorySessionCache creates an empty in-memory cache.
func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{}
}

func (c *MemorySessionCache) Load(ctx context.Context) (*session.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess, nil
}

func (c *MemorySessionCache) Save(ctx context.Context, sess *session.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = sess
	return nil
}

func (c *MemorySessionCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = nil
	return nil
}

var (
	_ SessionCache = (*RedisSessionCache)(nil)
	_ SessionCache = (*MemorySessionCache)(nil)
)
