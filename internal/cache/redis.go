package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/saleshop/internal/config"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "shop"

var redisClient *redis.Client
var redisPrefix = defaultPrefix
var redisEnabled bool

// InitRedis 初始化 Redis 客户端
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		redisEnabled = false
		return nil
	}
	addr := strings.TrimSpace(cfg.Host)
	if addr == "" {
		addr = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	redisPrefix = normalizePrefix(cfg.Prefix)

	redisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", addr, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	redisEnabled = true
	return nil
}

// Ping 检查 Redis 连通性
func Ping(ctx context.Context) error {
	if !Enabled() {
		return nil
	}
	return redisClient.Ping(ctx).Err()
}

// Close 关闭客户端
func Close() error {
	if redisClient == nil {
		return nil
	}
	err := redisClient.Close()
	redisEnabled = false
	return err
}

// Enabled 判断缓存是否启用
func Enabled() bool {
	return redisEnabled && redisClient != nil
}

// Client 获取 Redis 客户端
func Client() *redis.Client {
	if !Enabled() {
		return nil
	}
	return redisClient
}

// Prefix 当前键前缀
func Prefix() string {
	return redisPrefix
}

// GetJSON 获取 JSON 缓存
func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !Enabled() {
		return false, nil
	}
	val, err := redisClient.Get(ctx, buildKey(redisPrefix, key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !Enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return redisClient.Set(ctx, buildKey(redisPrefix, key), payload, ttl).Err()
}

// Del 删除缓存
func Del(ctx context.Context, key string) error {
	if !Enabled() {
		return nil
	}
	return redisClient.Del(ctx, buildKey(redisPrefix, key)).Err()
}

func normalizePrefix(raw string) string {
	prefix := strings.TrimSpace(raw)
	if prefix == "" {
		return defaultPrefix
	}
	return prefix
}

func buildKey(prefix, key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return prefix
	}
	return fmt.Sprintf("%s:%s", prefix, trimmed)
}
