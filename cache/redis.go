package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tickstore/config"
	"tickstore/logger"

	"github.com/redis/go-redis/v9"
)

// Constants for database numbers
const (
	LTPDB = 1 // For last-traded-price data
)

const ltpKeyPrefix = "ltp:"

// LTPEntry is the last traded price stored per token.
type LTPEntry struct {
	LTP       float64 `json:"ltp"`
	UpdatedAt int64   `json:"updated_at"` // Unix milliseconds
}

type RedisCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCache connects a client against the LTP database and verifies it
// with a ping.
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	log := logger.GetLogger()

	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          LTPDB,
		DialTimeout: cfg.GetConnectTimeout(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetConnectTimeout())
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Redis cache initialized", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   LTPDB,
	})

	return &RedisCache{
		client: client,
		log:    log,
	}, nil
}

// StoreLTP writes the latest price for a token. Best effort; callers treat
// errors as a stale cache, not a failure.
func (rc *RedisCache) StoreLTP(ctx context.Context, token string, ltp float64, ts time.Time) error {
	entry := LTPEntry{
		LTP:       ltp,
		UpdatedAt: ts.UnixMilli(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal LTP entry: %w", err)
	}

	if err := rc.client.Set(ctx, ltpKeyPrefix+token, data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store LTP: %w", err)
	}
	return nil
}

// GetLTP reads the latest cached price for a token.
func (rc *RedisCache) GetLTP(ctx context.Context, token string) (*LTPEntry, error) {
	data, err := rc.client.Get(ctx, ltpKeyPrefix+token).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read LTP: %w", err)
	}

	var entry LTPEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse LTP entry: %w", err)
	}
	return &entry, nil
}

func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
