package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisDisabled Redis 未启用
var ErrRedisDisabled = errors.New("redis is not enabled")

// RedisCartSlot 购物车快照存储在 <prefix>:<key> 下
type RedisCartSlot struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCartSlot 创建 Redis 槽位，ttl <= 0 表示不过期
func NewRedisCartSlot(client *redis.Client, prefix string, ttl time.Duration) *RedisCartSlot {
	return &RedisCartSlot{
		client: client,
		prefix: normalizePrefix(prefix),
		ttl:    ttl,
	}
}

// Get 读取快照
func (s *RedisCartSlot) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, ErrRedisDisabled
	}
	val, err := s.client.Get(ctx, buildKey(s.prefix, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Put 写入快照，每次写入刷新过期时间
func (s *RedisCartSlot) Put(ctx context.Context, key string, payload []byte) error {
	if s == nil || s.client == nil {
		return ErrRedisDisabled
	}
	return s.client.Set(ctx, buildKey(s.prefix, key), payload, s.ttl).Err()
}
