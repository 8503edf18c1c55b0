package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// Transcripts outlive the call by a day so a reconnecting participant
// still gets history, then expire on their own.
const chatTTL = 24 * time.Hour

type RedisChatRepository struct {
	client *redis.Client
}

func NewRedisChatRepository(client *redis.Client) ports.ChatRepository {
	return &RedisChatRepository{client: client}
}

func (r *RedisChatRepository) chatKey(id domain.ConsultationID) string {
	return fmt.Sprintf("telecall:chat:%s", id)
}

func (r *RedisChatRepository) Append(ctx context.Context, id domain.ConsultationID, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	key := r.chatKey(id)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, chatTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (r *RedisChatRepository) History(ctx context.Context, id domain.ConsultationID) ([]domain.ChatMessage, error) {
	entries, err := r.client.LRange(ctx, r.chatKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	messages := make([]domain.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			// Skip entries written by incompatible versions.
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *RedisChatRepository) Clear(ctx context.Context, id domain.ConsultationID) error {
	if err := r.client.Del(ctx, r.chatKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
