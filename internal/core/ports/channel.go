package ports

import (
	"context"

	"telecall/internal/core/domain"
)

// SignalChannel is the ordered, bidirectional transport carrying all
// signaling for one consultation. A dropped channel is not resumed; the
// lifecycle controller restarts the full startup sequence instead.
type SignalChannel interface {
	Connect(ctx context.Context) error
	Send(msg domain.SignalMessage) error
	// Receive returns the incoming message stream. The channel is
	// closed when the transport disconnects.
	Receive() <-chan domain.SignalMessage
	Close() error
}
