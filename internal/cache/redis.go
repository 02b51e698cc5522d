package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"trackgate/internal/core/model"
)

const lastPositionTTL = 24 * time.Hour

// Cache is a Redis-backed JSON cache. A Cache built without a reachable
// server is disabled: writes are dropped and reads miss.
type Cache struct {
	client  *redis.Client
	enabled bool
}

// New sets up a Redis connection if redisURL is provided.
func New(redisURL string, logger *log.Logger) *Cache {
	if redisURL == "" {
		logger.Println("Redis URL not provided, caching disabled")
		return &Cache{}
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Printf("Failed to parse Redis URL: %v, caching disabled", err)
		return &Cache{}
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Printf("Failed to connect to Redis: %v, caching disabled", err)
		client.Close()
		return &Cache{}
	}

	logger.Println("Redis cache initialized successfully")
	return &Cache{client: client, enabled: true}
}

func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Set stores a value in cache with expiration
func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

// Get retrieves a value from cache. A miss is redis.Nil.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if !c.enabled {
		return redis.Nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func lastPositionKey(devID string) string {
	return "trackgate:last:" + devID
}

func (c *Cache) SetLastPosition(ctx context.Context, pos *model.Position) error {
	return c.Set(ctx, lastPositionKey(pos.DeviceID), pos, lastPositionTTL)
}

// LastPosition returns the cached last fix of devID, or nil on a miss.
func (c *Cache) LastPosition(ctx context.Context, devID string) (*model.Position, error) {
	var pos model.Position
	err := c.Get(ctx, lastPositionKey(devID), &pos)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}
