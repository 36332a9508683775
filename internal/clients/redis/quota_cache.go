package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
)

// QuotaCache is a fast read path for free-tier daily counters. The database
// stays authoritative; entries expire at the UTC midnight reset boundary so a
// stale counter can never outlive its day.
type QuotaCache interface {
	GetUsed(ctx context.Context, userID, day string) (int, bool, error)
	SetUsed(ctx context.Context, userID, day string, used int, expireAt time.Time) error
	Close() error
}

type quotaCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewQuotaCache(log *logger.Logger) (QuotaCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &quotaCache{
		log: log.With("service", "RedisQuotaCache"),
		rdb: rdb,
	}, nil
}

func quotaKey(userID, day string) string {
	return "quota:daily:" + userID + ":" + day
}

func (c *quotaCache) GetUsed(ctx context.Context, userID, day string) (int, bool, error) {
	if c == nil || c.rdb == nil {
		return 0, false, fmt.Errorf("redis quota cache not initialized")
	}
	val, err := c.rdb.Get(ctx, quotaKey(userID, day)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, convErr := strconv.Atoi(val)
	if convErr != nil {
		return 0, false, convErr
	}
	return n, true, nil
}

func (c *quotaCache) SetUsed(ctx context.Context, userID, day string, used int, expireAt time.Time) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis quota cache not initialized")
	}
	key := quotaKey(userID, day)
	if err := c.rdb.Set(ctx, key, strconv.Itoa(used), 0).Err(); err != nil {
		return err
	}
	return c.rdb.ExpireAt(ctx, key, expireAt).Err()
}

func (c *quotaCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
