package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tonkserver/common/config"
	"tonkserver/common/log"

	"github.com/redis/go-redis/v9"
)

// RedisManager wraps a single redis.Client and caches the SHA of
// scripts it has loaded, so the hot path for the queue manager's
// popPlayers/enqueue scripts is EVALSHA rather than re-sending source
// on every call.
type RedisManager struct {
	Cli        *redis.Client
	scriptSHAs map[string]string
	mu         sync.RWMutex
}

func NewRedis(redisConf config.RedisConf) *RedisManager {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if redisConf.Addr == "" {
		panic("redis config missing addr")
	}

	cli := redis.NewClient(&redis.Options{
		Addr:         redisConf.Addr,
		Password:     redisConf.Password,
		DB:           redisConf.DB,
		PoolSize:     redisConf.PoolSize,
		MinIdleConns: redisConf.MinIdleConns,
	})

	if err := cli.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connect error: %v", err)
		return nil
	}

	return &RedisManager{
		Cli:        cli,
		scriptSHAs: make(map[string]string),
	}
}

func (r *RedisManager) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return r.Cli.Set(ctx, key, value, expiration).Err()
}

func (r *RedisManager) Get(ctx context.Context, key string) *redis.StringCmd {
	return r.Cli.Get(ctx, key)
}

func (r *RedisManager) Del(ctx context.Context, keys ...string) error {
	return r.Cli.Del(ctx, keys...).Err()
}

func (r *RedisManager) Exists(ctx context.Context, key ...string) (int64, error) {
	return r.Cli.Exists(ctx, key...).Result()
}

// EvalScript runs script under scriptName, caching its SHA so repeat
// calls go through EVALSHA. Falls back to a full reload if redis has
// evicted the cached script (NOSCRIPT).
func (r *RedisManager) EvalScript(ctx context.Context, scriptName, script string, keys []string, args ...any) (any, error) {
	r.mu.RLock()
	sha, exists := r.scriptSHAs[scriptName]
	r.mu.RUnlock()

	if exists {
		result, err := r.Cli.EvalSha(ctx, sha, keys, args...).Result()
		if err == nil {
			return result, nil
		}
		if !isNoScriptErr(err) {
			return nil, err
		}
	}

	newSHA, err := r.Cli.ScriptLoad(ctx, script).Result()
	if err != nil {
		return nil, fmt.Errorf("loading script %s: %w", scriptName, err)
	}
	r.mu.Lock()
	r.scriptSHAs[scriptName] = newSHA
	r.mu.Unlock()

	return r.Cli.EvalSha(ctx, newSHA, keys, args...).Result()
}

func isNoScriptErr(err error) bool {
	return err != nil && len(err.Error()) >= 8 && err.Error()[:8] == "NOSCRIPT"
}

func (r *RedisManager) Close() error {
	if r.Cli == nil {
		return nil
	}
	if err := r.Cli.Close(); err != nil {
		log.Error("redis close error: %v", err)
		return err
	}
	return nil
}
