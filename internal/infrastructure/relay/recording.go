package relay

import (
	"context"
	"sync"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
)

// MemoryRecordingAuthority keeps recording state per consultation. Start
// and stop are strict: a second start or a stop without a start is a
// rejection, which the relay reports back as recording_error.
type MemoryRecordingAuthority struct {
	mu     sync.Mutex
	active map[domain.ConsultationID]bool
}

func NewMemoryRecordingAuthority() ports.RecordingAuthority {
	return &MemoryRecordingAuthority{
		active: make(map[domain.ConsultationID]bool),
	}
}

func (a *MemoryRecordingAuthority) Start(ctx context.Context, id domain.ConsultationID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active[id] {
		return domain.ErrRecordingAlreadyActive
	}
	a.active[id] = true
	return nil
}

func (a *MemoryRecordingAuthority) Stop(ctx context.Context, id domain.ConsultationID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active[id] {
		return domain.ErrRecordingNotActive
	}
	delete(a.active, id)
	return nil
}

func (a *MemoryRecordingAuthority) Active(ctx context.Context, id domain.ConsultationID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active[id], nil
}
