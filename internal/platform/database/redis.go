package database

import (
	"context"
	"fmt"
	"time"

	"github.com/haider-9/tvdom/internal/platform/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// OpenRedis 初始化与Redis数据库的连接，并用Ping确认可用
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("无法连接到Redis: %w", err)
	}

	log.Info().Str("address", cfg.Address).Msg("Redis 连接成功")
	return rdb, nil
}
