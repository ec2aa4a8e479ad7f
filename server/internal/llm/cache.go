package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Cache stores raw model responses. Implementations treat backend errors
// as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache returns a MemoryCache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// Set implements Cache.
func (m *MemoryCache) Set(_ context.Context, key string, val []byte) {
	m.c.SetDefault(key, val)
}

// Len returns the number of cached responses, expired ones included.
func (m *MemoryCache) Len() int {
	return m.c.ItemCount()
}

// RedisCache shares responses between claimdesk instances.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects lazily; the first Get or Set dials the server.
func NewRedisCache(opts RedisOptions, log *zap.Logger) *RedisCache {
	return &RedisCache{
		rdb: redis.NewClient(&redis.Options{
			Addr:        opts.Addr,
			Password:    opts.Password,
			DB:          opts.DB,
			DialTimeout: 2 * time.Second,
		}),
		ttl:    opts.TTL,
		prefix: "claimdesk:llm:",
		log:    log,
	}
}

// Get implements Cache.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Debug("llm cache: redis get failed", zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

// Set implements Cache.
func (r *RedisCache) Set(ctx context.Context, key string, val []byte) {
	if err := r.rdb.Set(ctx, r.prefix+key, val, r.ttl).Err(); err != nil {
		r.log.Debug("llm cache: redis set failed", zap.Error(err))
	}
}

// Ping checks that the redis server answers.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the redis connection pool.
func (r *RedisCache) Close() error {
	return r.rdb.Close()
}

type cachedClient struct {
	next  Client
	cache Cache
}

// Cached wraps next so identical prompts are answered from cache. Only
// successful responses are stored.
func Cached(next Client, cache Cache) Client {
	return &cachedClient{next: next, cache: cache}
}

func (c *cachedClient) Name() string {
	return c.next.Name()
}

func (c *cachedClient) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) ([]byte, error) {
	key := cacheKey(c.next.Name(), prompt, schema)
	if b, ok := c.cache.Get(ctx, key); ok {
		return b, nil
	}
	b, err := c.next.GenerateJSON(ctx, prompt, schema)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, b)
	return b, nil
}

func cacheKey(model, prompt string, schema *genai.Schema) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	if schema != nil {
		b, _ := json.Marshal(schema)
		h.Write([]byte{0})
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}
