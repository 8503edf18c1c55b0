package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthChecker_AllHealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("alpha", func(ctx context.Context) (bool, error) { return true, nil }, time.Minute, time.Second)
	h.AddCheck("beta", func(ctx context.Context) (bool, error) { return true, nil }, time.Minute, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["alpha"])
	assert.Equal(t, "healthy", status.Checks["beta"])
	assert.WithinDuration(t, time.Now(), status.Timestamp, time.Second)
}

func TestHealthChecker_FailingProbeFlipsStatus(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("alpha", func(ctx context.Context) (bool, error) { return true, nil }, time.Minute, time.Second)
	h.AddCheck("beta", func(ctx context.Context) (bool, error) { return false, errors.New("connection refused") }, time.Minute, time.Second)
	h.AddCheck("gamma", func(ctx context.Context) (bool, error) { return false, nil }, time.Minute, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["alpha"])
	assert.Equal(t, "connection refused", status.Checks["beta"])
	assert.Equal(t, "check failed", status.Checks["gamma"])
}

func TestHealthChecker_ProbeTimeout(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) (bool, error) {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(time.Second):
			return true, nil
		}
	}, time.Minute, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
}
