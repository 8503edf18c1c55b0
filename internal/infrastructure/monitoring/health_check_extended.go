package monitoring

import (
	"context"
	"time"

	"telecall/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddChatRepositoryCheck verifies the transcript store answers reads.
func (h *HealthChecker) AddChatRepositoryCheck(repo ports.ChatRepository, interval, timeout time.Duration) {
	h.AddCheck("chat_repository", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if _, err := repo.History(ctx, "healthcheck"); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddConsultationServiceCheck verifies the upstream consultation
// service is reachable.
func (h *HealthChecker) AddConsultationServiceCheck(ping func(ctx context.Context) error, interval, timeout time.Duration) {
	h.AddCheck("consultation_service", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}
