package database

import (
	"context"
	"fmt"
	"log/slog"

	"chat-service/config"

	"github.com/redis/go-redis/v9"
)

// Redis DB numbers by role.
const (
	RedisPresence = 0
	RedisAdapter  = 1
)

// RedisConnect opens one client per configured DB number and pings each.
func RedisConnect(ctx context.Context, cfg *config.Settings, log *slog.Logger) (map[int]*redis.Client, error) {
	clients := make(map[int]*redis.Client, len(cfg.RedisDB))
	for _, db := range cfg.RedisDB {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       db,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis db %d: %w", db, err)
		}
		clients[db] = client
	}

	for _, role := range []int{RedisPresence, RedisAdapter} {
		if _, ok := clients[role]; !ok {
			return nil, fmt.Errorf("redis db %d is not configured", role)
		}
	}

	log.Info("Connections opened to Redis", "dbs", cfg.RedisDB)
	return clients, nil
}
