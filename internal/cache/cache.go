// Package cache keeps enrollment reference sets in Redis so verification
// sessions can start without touching the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayusman/facegate/internal/identity"
)

// DefaultTTL is how long a reference set stays cached.
const DefaultTTL = time.Hour

// DescriptorCache stores reference descriptor sets keyed by enrollment ID.
type DescriptorCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(addr, password string, db int, ttl time.Duration) (*DescriptorCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &DescriptorCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func key(enrollmentID string) string {
	return fmt.Sprintf("descriptors:%s", enrollmentID)
}

// Get returns the cached reference set. A miss returns nil, nil.
func (c *DescriptorCache) Get(ctx context.Context, enrollmentID string) ([]identity.Descriptor, error) {
	data, err := c.client.Get(ctx, key(enrollmentID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var set []identity.Descriptor
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, err
	}

	return set, nil
}

// Set caches the reference set for the configured TTL.
func (c *DescriptorCache) Set(ctx context.Context, enrollmentID string, set []identity.Descriptor) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key(enrollmentID), data, c.ttl).Err()
}

// Invalidate removes the cached reference set.
func (c *DescriptorCache) Invalidate(ctx context.Context, enrollmentID string) error {
	return c.client.Del(ctx, key(enrollmentID)).Err()
}

// TTL returns the expiry applied to cached sets.
func (c *DescriptorCache) TTL() time.Duration {
	return c.ttl
}

// Close closes the Redis connection.
func (c *DescriptorCache) Close() error {
	return c.client.Close()
}
