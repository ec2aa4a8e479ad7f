package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCache(time.Minute)

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	m.Set(ctx, "k", []byte("v"))
	v, ok := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, 1, m.Len())
}

func TestCached_KeysOnPromptAndSchema(t *testing.T) {
	ctx := context.Background()
	stub := &stubClient{reply: `{"queries":["q"]}`}
	c := Cached(stub, NewMemoryCache(time.Minute))
	assert.Equal(t, "stub", c.Name())

	_, _ = c.GenerateJSON(ctx, "a", QueriesSchema)
	_, _ = c.GenerateJSON(ctx, "a", QueriesSchema)
	assert.Equal(t, int32(1), stub.calls.Load())

	_, _ = c.GenerateJSON(ctx, "b", QueriesSchema)
	_, _ = c.GenerateJSON(ctx, "a", FraudSchema)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestCached_DoesNotStoreErrors(t *testing.T) {
	ctx := context.Background()
	stub := &stubClient{err: errors.New("quota")}
	mem := NewMemoryCache(time.Minute)
	c := Cached(stub, mem)

	_, err := c.GenerateJSON(ctx, "a", nil)
	assert.Error(t, err)
	_, err = c.GenerateJSON(ctx, "a", nil)
	assert.Error(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Zero(t, mem.Len())
}

func TestRedisCache_UnreachableIsMiss(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc := NewRedisCache(RedisOptions{Addr: "127.0.0.1:1", TTL: time.Minute}, zaptest.NewLogger(t))
	defer rc.Close()

	rc.Set(ctx, "k", []byte("v"))
	_, ok := rc.Get(ctx, "k")
	assert.False(t, ok)

	stub := &stubClient{reply: `{"queries":["q"]}`}
	b, err := Cached(stub, rc).GenerateJSON(ctx, "a", nil)
	assert.NoError(t, err)
	assert.Equal(t, `{"queries":["q"]}`, string(b))
}
