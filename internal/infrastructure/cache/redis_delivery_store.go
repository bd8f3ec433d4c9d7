package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// DefaultKeyPrefix namespaces delivery marks in Redis
const DefaultKeyPrefix = "boardsync:webhook:delivery:"

// RedisDeliveryStore implements DeliveryStore on Redis so that every
// instance behind the webhook endpoint shares the same marks.
type RedisDeliveryStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewRedisDeliveryStore connects and pings Redis
func NewRedisDeliveryStore(ctx context.Context, cfg RedisConfig) (*RedisDeliveryStore, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisDeliveryStoreWithClient(client, DefaultKeyPrefix), nil
}

// NewRedisDeliveryStoreWithClient wraps an existing client
func NewRedisDeliveryStoreWithClient(client *redis.Client, keyPrefix string) *RedisDeliveryStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisDeliveryStore{client: client, keyPrefix: keyPrefix}
}

// Claim uses SET NX with the TTL so concurrent deliveries race safely
func (s *RedisDeliveryStore) Claim(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+deliveryID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery %s: %w", deliveryID, err)
	}
	return ok, nil
}

// Confirm overwrites the mark with the full TTL
func (s *RedisDeliveryStore) Confirm(ctx context.Context, deliveryID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+deliveryID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to confirm delivery %s: %w", deliveryID, err)
	}
	return nil
}

// Forget deletes the mark for deliveryID
func (s *RedisDeliveryStore) Forget(ctx context.Context, deliveryID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+deliveryID).Err(); err != nil {
		return fmt.Errorf("failed to forget delivery %s: %w", deliveryID, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisDeliveryStore) Close() error {
	return s.client.Close()
}

// Ensure RedisDeliveryStore implements DeliveryStore
var _ integration.DeliveryStore = (*RedisDeliveryStore)(nil)
