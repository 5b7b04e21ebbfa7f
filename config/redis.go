package config

import (
	"os"
	"strconv"
	"sync"
)

var (
	redisOnce   sync.Once
	redisConfig *RedisConfig
)

// RedisConfig backs the task queue and its status cache.
type RedisConfig struct {
	Addr string
	DB   int
}

func GetRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		loadEnv()

		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}

		db := 0
		if raw := os.Getenv("REDIS_DB"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				db = n
			}
		}

		redisConfig = &RedisConfig{
			Addr: addr,
			DB:   db,
		}
	})
	return redisConfig
}
