package memory

import (
	"context"
	"sync"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
)

type MemoryRoomRepository struct {
	rooms map[domain.ConsultationID]map[domain.ConnectionID]domain.Participant
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.ConsultationID]map[domain.ConnectionID]domain.Participant),
	}
}

func (r *MemoryRoomRepository) AddParticipant(ctx context.Context, id domain.ConsultationID, p domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists {
		room = make(map[domain.ConnectionID]domain.Participant)
		r.rooms[id] = room
	}
	room[p.ConnectionID] = p
	return nil
}

func (r *MemoryRoomRepository) RemoveParticipant(ctx context.Context, id domain.ConsultationID, conn domain.ConnectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists {
		return domain.ErrRoomNotFound
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(r.rooms, id)
	}
	return nil
}

func (r *MemoryRoomRepository) Participants(ctx context.Context, id domain.ConsultationID) ([]domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[id]
	participants := make([]domain.Participant, 0, len(room))
	for _, p := range room {
		participants = append(participants, p)
	}
	return participants, nil
}
