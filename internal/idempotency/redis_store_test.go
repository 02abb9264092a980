package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKeysAreScoped(t *testing.T) {
	assert.Equal(t, "idemp:checkout:u1:k1", lockKey("checkout", "u1:k1"))
	assert.Equal(t, "idemp:map:checkout:u1:k1", valueKey("checkout", "u1:k1"))
	assert.NotEqual(t, lockKey("checkout", "k"), valueKey("checkout", "k"))
}

func TestRedisStore_UnreachableServerReturnsErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := NewRedisStore(rdb, time.Minute)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := store.TryLock(ctx, "checkout", "key")
	assert.Error(t, err)

	_, found, err := store.Recall(ctx, "checkout", "key")
	assert.Error(t, err)
	assert.False(t, found)
}
