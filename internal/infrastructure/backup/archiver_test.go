package backup

import (
	"context"
	"testing"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/infrastructure/repositories/memory"
	"telecall/pkg/backup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newArchiver(t *testing.T) (*TranscriptArchiver, *backup.SnapshotStore, func(msg domain.ChatMessage)) {
	t.Helper()

	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	store := backup.NewSnapshotStore(storage)

	chatRepo := memory.NewMemoryChatRepository()
	archiver := NewTranscriptArchiver(chatRepo, store, zaptest.NewLogger(t).Sugar())

	seed := func(msg domain.ChatMessage) {
		require.NoError(t, chatRepo.Append(context.Background(), "consult-1", msg))
	}
	return archiver, store, seed
}

func TestArchiver_ArchivesAndClears(t *testing.T) {
	archiver, _, seed := newArchiver(t)
	ctx := context.Background()

	seed(domain.ChatMessage{ID: "m1", SenderID: "doctor-1", Text: "hello", SentAt: time.Now()})
	seed(domain.ChatMessage{ID: "m2", SenderID: "patient-1", Text: "hi", SentAt: time.Now()})

	require.NoError(t, archiver.ArchiveAndClear(ctx, "consult-1"))

	names, err := archiver.List(ctx, "consult-1")
	require.NoError(t, err)
	require.Len(t, names, 1)

	transcript, err := archiver.Load(ctx, names[0])
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationID("consult-1"), transcript.ConsultationID)
	assert.Len(t, transcript.Messages, 2)
	assert.Equal(t, "hello", transcript.Messages[0].Text)

	// Live chat is gone after archiving.
	history, err := memoryHistory(t, archiver)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func memoryHistory(t *testing.T, a *TranscriptArchiver) ([]domain.ChatMessage, error) {
	t.Helper()
	return a.chatRepo.History(context.Background(), "consult-1")
}

func TestArchiver_EmptyChatArchivesNothing(t *testing.T) {
	archiver, _, _ := newArchiver(t)
	ctx := context.Background()

	require.NoError(t, archiver.ArchiveAndClear(ctx, "consult-1"))

	names, err := archiver.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestArchiveTime(t *testing.T) {
	at, ok := archiveTime("transcript-consult-1-20260828-101500.json")
	require.True(t, ok)
	assert.Equal(t, 2026, at.Year())

	_, ok = archiveTime("garbage.json")
	assert.False(t, ok)
}
