package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/config"
)

// DeliveryStoreFactory picks a delivery store from configuration
type DeliveryStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// DeliveryStoreFactoryOption is a functional option for configuring the factory
type DeliveryStoreFactoryOption func(*DeliveryStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) DeliveryStoreFactoryOption {
	return func(f *DeliveryStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to memory.
// Default is true.
func WithInMemoryFallback(allow bool) DeliveryStoreFactoryOption {
	return func(f *DeliveryStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewDeliveryStoreFactory creates a new factory
func NewDeliveryStoreFactory(cfg config.RedisConfig, opts ...DeliveryStoreFactoryOption) *DeliveryStoreFactory {
	f := &DeliveryStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when Redis is enabled and reachable,
// otherwise an in-memory store if fallback is allowed.
func (f *DeliveryStoreFactory) CreateStore(ctx context.Context) (integration.DeliveryStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory webhook delivery store")
		return NewInMemoryDeliveryStore(), nil
	}

	store, err := NewRedisDeliveryStore(ctx, RedisConfig{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("Using Redis webhook delivery store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for webhook dedup but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory webhook delivery store; "+
		"redeliveries may be processed twice across instances",
		zap.Error(err),
	)
	return NewInMemoryDeliveryStore(), nil
}
