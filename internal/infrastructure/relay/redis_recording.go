package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/distributed"

	"github.com/redis/go-redis/v9"
)

// recordingLockTTL caps an orphaned recording flag after a relay crash.
const recordingLockTTL = 4 * time.Hour

// RedisRecordingAuthority enforces the single-recording rule across
// relay instances with a per-consultation Redis lock. The semantics
// match MemoryRecordingAuthority: strict start, strict stop.
type RedisRecordingAuthority struct {
	client *redis.Client

	mu    sync.Mutex
	locks map[domain.ConsultationID]*distributed.Lock
}

func NewRedisRecordingAuthority(client *redis.Client) ports.RecordingAuthority {
	return &RedisRecordingAuthority{
		client: client,
		locks:  make(map[domain.ConsultationID]*distributed.Lock),
	}
}

func (a *RedisRecordingAuthority) lockFor(id domain.ConsultationID) *distributed.Lock {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.locks[id]
	if !ok {
		l = distributed.NewLock(a.client, "telecall:recording:"+string(id), recordingLockTTL)
		a.locks[id] = l
	}
	return l
}

func (a *RedisRecordingAuthority) Start(ctx context.Context, id domain.ConsultationID) error {
	acquired, err := a.lockFor(id).TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		return domain.ErrRecordingAlreadyActive
	}
	return nil
}

func (a *RedisRecordingAuthority) Stop(ctx context.Context, id domain.ConsultationID) error {
	err := a.lockFor(id).Release(ctx)
	if errors.Is(err, distributed.ErrNotHeld) {
		return domain.ErrRecordingNotActive
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	delete(a.locks, id)
	a.mu.Unlock()
	return nil
}

func (a *RedisRecordingAuthority) Active(ctx context.Context, id domain.ConsultationID) (bool, error) {
	return a.lockFor(id).Held(ctx)
}
