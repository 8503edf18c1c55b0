package ports

import (
	"context"

	"telecall/internal/core/domain"
)

// RecordingAuthority decides recording start/stop requests on the relay.
// Storage of the recording itself lives behind this boundary.
type RecordingAuthority interface {
	Start(ctx context.Context, id domain.ConsultationID) error
	Stop(ctx context.Context, id domain.ConsultationID) error
	Active(ctx context.Context, id domain.ConsultationID) (bool, error)
}
