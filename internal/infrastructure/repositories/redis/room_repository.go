package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisRoomRepository tracks room occupancy in a hash per consultation,
// keyed by connection so a reconnect overwrites the stale entry.
type RedisRoomRepository struct {
	client *redis.Client
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{client: client}
}

func (r *RedisRoomRepository) roomKey(id domain.ConsultationID) string {
	return fmt.Sprintf("telecall:room:%s", id)
}

func (r *RedisRoomRepository) AddParticipant(ctx context.Context, id domain.ConsultationID, p domain.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal participant: %w", err)
	}
	if err := r.client.HSet(ctx, r.roomKey(id), string(p.ConnectionID), data).Err(); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

func (r *RedisRoomRepository) RemoveParticipant(ctx context.Context, id domain.ConsultationID, conn domain.ConnectionID) error {
	if err := r.client.HDel(ctx, r.roomKey(id), string(conn)).Err(); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

func (r *RedisRoomRepository) Participants(ctx context.Context, id domain.ConsultationID) ([]domain.Participant, error) {
	entries, err := r.client.HGetAll(ctx, r.roomKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read room occupancy: %w", err)
	}

	participants := make([]domain.Participant, 0, len(entries))
	for _, entry := range entries {
		var p domain.Participant
		if err := json.Unmarshal([]byte(entry), &p); err != nil {
			continue
		}
		participants = append(participants, p)
	}
	return participants, nil
}
