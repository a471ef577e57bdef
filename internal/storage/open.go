package storage

import (
	"github.com/redis/go-redis/v9"

	"github.com/scor-analyzer/internal/config"
	"github.com/scor-analyzer/internal/logging"
)

// Backends holds the result cache and, with the redis backend, the shared
// client other components coordinate through.
type Backends struct {
	Cache *ResultCache
	// Redis is nil for the memory backend
	Redis redis.Cmdable

	close func()
}

// Close releases the backend connection
func (b *Backends) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenBackends builds the result cache for the configured backend.
func OpenBackends(cfg *config.Config, logger *logging.Logger) (*Backends, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisCache, err := NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		store := NewRedisStore(redisCache, cfg.Cache.KeyPrefix)
		return &Backends{
			Cache: NewResultCache(store, config.CacheBackendRedis, cfg.Cache.TTL, nil, logger),
			Redis: redisCache.client,
			close: func() { _ = redisCache.Close() },
		}, nil
	default:
		return &Backends{
			Cache: NewResultCache(NewMemoryStore(nil), config.CacheBackendMemory, cfg.Cache.TTL, nil, logger),
		}, nil
	}
}
