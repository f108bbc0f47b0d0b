package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockFailed = errors.New("获取分布式锁失败")

// unlockScript 只删除自己持有的锁
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DistributedLock 基于 SET NX EX 的 Redis 锁，value 标识持有者
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞加锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞加锁，最多重试 maxRetries 次
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// PointLockKey 用户积分锁的 key，同一用户的扣分请求串行执行
func PointLockKey(userID string) string {
	return fmt.Sprintf("point:lock:user:%s", userID)
}

// NewPointLock 创建用户维度的积分锁，requestID 作为持有者标识
func NewPointLock(client *redis.Client, userID, requestID string) *DistributedLock {
	return NewDistributedLock(client, PointLockKey(userID), requestID, 30*time.Second)
}

// Locker 按用户加锁，返回的函数用于释放
type Locker interface {
	LockUser(ctx context.Context, userID string) (unlock func(), err error)
}

// RedisLocker 基于 Redis 的 Locker
type RedisLocker struct {
	client        *redis.Client
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:        client,
		retryInterval: 50 * time.Millisecond,
		maxRetries:    100,
	}
}

func (l *RedisLocker) LockUser(ctx context.Context, userID string) (func(), error) {
	lk := NewPointLock(l.client, userID, uuid.NewString())
	if err := lk.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, fmt.Errorf("%w [user=%s]: %w", ErrLockFailed, userID, err)
	}
	return func() {
		// 请求 ctx 可能已取消，释放锁使用独立的 ctx
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = lk.Unlock(ctx)
	}, nil
}

// NopLocker 不加锁，memory 模式下账本自身已串行
type NopLocker struct{}

func (NopLocker) LockUser(context.Context, string) (func(), error) {
	return func() {}, nil
}
