package repositories

import (
	"context"

	"telecall/internal/core/ports"
	"telecall/internal/infrastructure/repositories/memory"
	redisrepo "telecall/internal/infrastructure/repositories/redis"
	"telecall/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreateChatRepository creates a chat repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateChatRepository() ports.ChatRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisChatRepository(f.redisClient)
	}
	return memory.NewMemoryChatRepository()
}

// CreateRoomRepository creates a room repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateRoomRepository() ports.RoomRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisRoomRepository(f.redisClient)
	}
	return memory.NewMemoryRoomRepository()
}

// CreateConsultationRepository creates a consultation repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateConsultationRepository() ports.ConsultationRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisConsultationRepository(f.redisClient)
	}
	return memory.NewMemoryConsultationRepository()
}

// RedisClient returns the underlying Redis client, nil when memory repositories are in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if f.useRedis {
		return f.redisClient
	}
	return nil
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
