package memory

import (
	"context"
	"sync"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
)

type MemoryChatRepository struct {
	transcripts map[domain.ConsultationID][]domain.ChatMessage
	mu          sync.RWMutex
}

func NewMemoryChatRepository() ports.ChatRepository {
	return &MemoryChatRepository{
		transcripts: make(map[domain.ConsultationID][]domain.ChatMessage),
	}
}

func (r *MemoryChatRepository) Append(ctx context.Context, id domain.ConsultationID, msg domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transcripts[id] = append(r.transcripts[id], msg)
	return nil
}

func (r *MemoryChatRepository) History(ctx context.Context, id domain.ConsultationID) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.transcripts[id]
	out := make([]domain.ChatMessage, len(history))
	copy(out, history)
	return out, nil
}

func (r *MemoryChatRepository) Clear(ctx context.Context, id domain.ConsultationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.transcripts, id)
	return nil
}
