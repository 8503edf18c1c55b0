package repositories

import (
	"context"
	"testing"

	"telecall/internal/core/domain"
	"telecall/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFactory_MemoryFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = false

	factory, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer factory.Close()

	assert.Nil(t, factory.RedisClient())
	assert.NotNil(t, factory.CreateChatRepository())
	assert.NotNil(t, factory.CreateRoomRepository())
	assert.NotNil(t, factory.CreateConsultationRepository())
	assert.NoError(t, factory.HealthCheck(context.Background()))
}

func TestFactory_ConsultationRepositoryRoundtrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = false

	factory, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer factory.Close()

	repo := factory.CreateConsultationRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.Consultation{
		ID:        "consult-f1",
		DoctorID:  "doctor-1",
		PatientID: "patient-1",
		Status:    "scheduled",
		Credits:   2,
	}))

	got, err := repo.Get(ctx, "consult-f1")
	require.NoError(t, err)
	assert.Equal(t, "scheduled", got.Status)

	require.NoError(t, repo.SetStatus(ctx, "consult-f1", "active"))
	got, err = repo.Get(ctx, "consult-f1")
	require.NoError(t, err)
	assert.Equal(t, "active", got.Status)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrConsultationNotFound)
}
