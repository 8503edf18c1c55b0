package ports

import (
	"context"

	"telecall/internal/core/domain"
)

// ChatRepository stores the per-consultation transcript served as an
// authoritative snapshot on chat join.
type ChatRepository interface {
	Append(ctx context.Context, id domain.ConsultationID, msg domain.ChatMessage) error
	History(ctx context.Context, id domain.ConsultationID) ([]domain.ChatMessage, error)
	Clear(ctx context.Context, id domain.ConsultationID) error
}

// RoomRepository tracks room occupancy on the relay side.
type RoomRepository interface {
	AddParticipant(ctx context.Context, id domain.ConsultationID, p domain.Participant) error
	RemoveParticipant(ctx context.Context, id domain.ConsultationID, conn domain.ConnectionID) error
	Participants(ctx context.Context, id domain.ConsultationID) ([]domain.Participant, error)
}
