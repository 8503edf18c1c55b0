package memory

import (
	"context"
	"sync"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
)

type MemoryConsultationRepository struct {
	consultations map[domain.ConsultationID]*domain.Consultation
	mu            sync.RWMutex
}

func NewMemoryConsultationRepository() ports.ConsultationRepository {
	return &MemoryConsultationRepository{
		consultations: make(map[domain.ConsultationID]*domain.Consultation),
	}
}

func (r *MemoryConsultationRepository) Get(ctx context.Context, id domain.ConsultationID) (*domain.Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.consultations[id]
	if !exists {
		return nil, domain.ErrConsultationNotFound
	}
	out := *c
	return &out, nil
}

func (r *MemoryConsultationRepository) Save(ctx context.Context, c *domain.Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *c
	r.consultations[c.ID] = &stored
	return nil
}

func (r *MemoryConsultationRepository) SetStatus(ctx context.Context, id domain.ConsultationID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.consultations[id]
	if !exists {
		return domain.ErrConsultationNotFound
	}
	c.Status = status
	return nil
}
