package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisConsultationRepository keeps consultation records in a hash per
// consultation so status flips touch one field, not the whole record.
type RedisConsultationRepository struct {
	client *redis.Client
}

func NewRedisConsultationRepository(client *redis.Client) ports.ConsultationRepository {
	return &RedisConsultationRepository{client: client}
}

func (r *RedisConsultationRepository) consultationKey(id domain.ConsultationID) string {
	return fmt.Sprintf("telecall:consultation:%s", id)
}

func (r *RedisConsultationRepository) Get(ctx context.Context, id domain.ConsultationID) (*domain.Consultation, error) {
	fields, err := r.client.HGetAll(ctx, r.consultationKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read consultation: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrConsultationNotFound
	}

	var c domain.Consultation
	if err := json.Unmarshal([]byte(fields["record"]), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal consultation: %w", err)
	}
	if status, ok := fields["status"]; ok {
		c.Status = status
	}
	return &c, nil
}

func (r *RedisConsultationRepository) Save(ctx context.Context, c *domain.Consultation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal consultation: %w", err)
	}
	if err := r.client.HSet(ctx, r.consultationKey(c.ID),
		"record", data,
		"status", c.Status,
	).Err(); err != nil {
		return fmt.Errorf("failed to save consultation: %w", err)
	}
	return nil
}

func (r *RedisConsultationRepository) SetStatus(ctx context.Context, id domain.ConsultationID, status string) error {
	key := r.consultationKey(id)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check consultation: %w", err)
	}
	if exists == 0 {
		return domain.ErrConsultationNotFound
	}
	if err := r.client.HSet(ctx, key, "status", status).Err(); err != nil {
		return fmt.Errorf("failed to update consultation status: %w", err)
	}
	return nil
}
