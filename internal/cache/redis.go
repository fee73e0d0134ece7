package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"mindmate.io/companion/internal/core"
)

const (
	historyKeyPrefix    = "history:"
	generationKeyPrefix = "history:gen:"
	DefaultTTL          = 5 * time.Minute
)

var errStaleGeneration = errors.New("history generation changed")

// RedisHistoryCache keeps each user's rendered history as one JSON value next
// to a generation counter that every invalidation increments.
type RedisHistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHistoryCache(client *redis.Client, ttl time.Duration) *RedisHistoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisHistoryCache{client: client, ttl: ttl}
}

// Dial connects to addr and pings it once.
func Dial(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisHistoryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return NewRedisHistoryCache(client, ttl), nil
}

func (c *RedisHistoryCache) Get(ctx context.Context, userID int64) ([]core.SessionView, bool, error) {
	val, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached history: %w", err)
	}

	var views []core.SessionView
	if err := json.Unmarshal(val, &views); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached history: %w", err)
	}
	return views, true, nil
}

func (c *RedisHistoryCache) Generation(ctx context.Context, userID int64) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read history generation: %w", err)
	}
	return gen, nil
}

// Set stores views only while the user's generation still equals generation.
// A lost race is not an error; the render simply is not cached.
func (c *RedisHistoryCache) Set(ctx context.Context, userID, generation int64, views []core.SessionView) error {
	val, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	genKey := c.generationKey(userID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(userID), val, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, errStaleGeneration) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate advances the generation and drops the cached value in one transaction.
func (c *RedisHistoryCache) Invalidate(ctx context.Context, userID int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey(userID))
		pipe.Del(ctx, c.key(userID))
		return nil
	})
	return err
}

func (c *RedisHistoryCache) Close() error {
	return c.client.Close()
}

func (c *RedisHistoryCache) key(userID int64) string {
	return historyKeyPrefix + strconv.FormatInt(userID, 10)
}

func (c *RedisHistoryCache) generationKey(userID int64) string {
	return generationKeyPrefix + strconv.FormatInt(userID, 10)
}
