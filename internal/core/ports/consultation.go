package ports

import (
	"context"

	"telecall/internal/core/domain"
)

// ConsultationAPI is the client-side boundary to the external
// consultation service. Failures come back as classified pkg/errors
// codes the lifecycle controller maps to abort reasons.
type ConsultationAPI interface {
	Status(ctx context.Context, id domain.ConsultationID) (*domain.Consultation, error)
	Start(ctx context.Context, id domain.ConsultationID) (*domain.CallInfo, error)
	// End is sent by the initiator only, best-effort.
	End(ctx context.Context, id domain.ConsultationID) error
}

// ConsultationRepository backs the relay's minimal consultation REST
// surface (status/start/end).
type ConsultationRepository interface {
	Get(ctx context.Context, id domain.ConsultationID) (*domain.Consultation, error)
	Save(ctx context.Context, c *domain.Consultation) error
	SetStatus(ctx context.Context, id domain.ConsultationID, status string) error
}
