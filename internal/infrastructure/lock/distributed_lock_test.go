package lock

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointLockKey(t *testing.T) {
	assert.Equal(t, "point:lock:user:alice", PointLockKey("alice"))
}

func TestNopLocker(t *testing.T) {
	unlock, err := NopLocker{}.LockUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotPanics(t, unlock)
}

func TestRedisLockerUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	unlock, err := NewRedisLocker(client).LockUser(context.Background(), "alice")
	assert.Nil(t, unlock)
	assert.ErrorIs(t, err, ErrLockFailed)
}
