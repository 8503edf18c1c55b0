package backup

import (
	"context"
	"fmt"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/backup"

	"go.uber.org/zap"
)

// Transcript is the archived form of a consultation chat.
type Transcript struct {
	ConsultationID domain.ConsultationID `json:"consultation_id"`
	ArchivedAt     time.Time             `json:"archived_at"`
	Messages       []domain.ChatMessage  `json:"messages"`
}

// TranscriptArchiver snapshots a consultation's chat when the call ends
// and clears the live transcript afterwards.
type TranscriptArchiver struct {
	chatRepo ports.ChatRepository
	store    *backup.SnapshotStore
	logger   *zap.SugaredLogger
}

func NewTranscriptArchiver(chatRepo ports.ChatRepository, store *backup.SnapshotStore, logger *zap.SugaredLogger) *TranscriptArchiver {
	return &TranscriptArchiver{
		chatRepo: chatRepo,
		store:    store,
		logger:   logger,
	}
}

func archiveName(id domain.ConsultationID, at time.Time) string {
	return fmt.Sprintf("transcript-%s-%s.json", id, at.Format("20060102-150405"))
}

// ArchiveAndClear writes the transcript snapshot, then clears the live
// chat. An empty transcript archives nothing.
func (a *TranscriptArchiver) ArchiveAndClear(ctx context.Context, id domain.ConsultationID) error {
	messages, err := a.chatRepo.History(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	now := time.Now()
	transcript := Transcript{
		ConsultationID: id,
		ArchivedAt:     now,
		Messages:       messages,
	}
	if err := a.store.Save(ctx, archiveName(id, now), transcript); err != nil {
		return fmt.Errorf("failed to archive transcript: %w", err)
	}

	if err := a.chatRepo.Clear(ctx, id); err != nil {
		a.logger.Warnw("failed to clear archived chat", "consultation_id", id, "error", err)
	}

	a.logger.Infow("transcript archived",
		"consultation_id", id,
		"messages", len(messages),
	)
	return nil
}

// Load reads an archived transcript back, for support tooling.
func (a *TranscriptArchiver) Load(ctx context.Context, name string) (*Transcript, error) {
	var transcript Transcript
	if err := a.store.Load(ctx, name, &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// List returns archive names for a consultation, all of them when id is
// empty.
func (a *TranscriptArchiver) List(ctx context.Context, id domain.ConsultationID) ([]string, error) {
	prefix := "transcript-"
	if id != "" {
		prefix = fmt.Sprintf("transcript-%s-", id)
	}
	return a.store.List(ctx, prefix)
}
