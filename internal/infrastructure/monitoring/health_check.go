package monitoring

import (
	"context"
	"sync"
	"time"
)

// ProbeFunc reports whether a dependency is usable. A false result or
// an error both mark the dependency unhealthy.
type ProbeFunc func(ctx context.Context) (bool, error)

type probe struct {
	name     string
	run      ProbeFunc
	interval time.Duration
	timeout  time.Duration
}

// HealthChecker aggregates dependency probes for the /health endpoint.
type HealthChecker struct {
	mu     sync.RWMutex
	probes []probe
}

// HealthStatus is the /health response body. Status is "healthy" only
// when every probe passed.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// AddCheck registers a named probe. interval drives the background
// loop, timeout bounds each probe run.
func (h *HealthChecker) AddCheck(name string, run ProbeFunc, interval, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, probe{name: name, run: run, interval: interval, timeout: timeout})
}

// CheckAll runs every probe once and aggregates the results.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	probes := make([]probe, len(h.probes))
	copy(probes, h.probes)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(probes)),
	}

	for _, p := range probes {
		result := p.evaluate(ctx)
		status.Checks[p.name] = result
		if result != "healthy" {
			status.Status = "unhealthy"
		}
	}

	return status
}

func (p probe) evaluate(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ok, err := p.run(ctx)
	switch {
	case err != nil:
		return err.Error()
	case !ok:
		return "check failed"
	default:
		return "healthy"
	}
}

// StartBackgroundChecks keeps every probe warm on its own interval
// until ctx is cancelled.
func (h *HealthChecker) StartBackgroundChecks(ctx context.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, p := range h.probes {
		go func(p probe) {
			ticker := time.NewTicker(p.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.evaluate(ctx)
				}
			}
		}(p)
	}
}
