package backup

import (
	"context"
	"strings"
	"time"

	"telecall/pkg/backup"

	"go.uber.org/zap"
)

// Sweeper deletes archived transcripts past their retention window.
type Sweeper struct {
	store     *backup.SnapshotStore
	interval  time.Duration
	retention time.Duration
	logger    *zap.SugaredLogger
	stopChan  chan struct{}
}

func NewSweeper(store *backup.SnapshotStore, interval, retention time.Duration, logger *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		store:     store,
		interval:  interval,
		retention: retention,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start sweeps periodically until Stop or ctx cancellation.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

func (s *Sweeper) sweep(ctx context.Context) {
	names, err := s.store.List(ctx, "transcript-")
	if err != nil {
		s.logger.Warnw("archive sweep failed", "error", err)
		return
	}

	cutoff := time.Now().Add(-s.retention)
	removed := 0
	for _, name := range names {
		at, ok := archiveTime(name)
		if !ok || at.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, name); err != nil {
			s.logger.Warnw("failed to delete expired archive", "name", name, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Infow("expired archives removed", "count", removed)
	}
}

// archiveTime parses the timestamp suffix of transcript-<id>-<ts>.json.
func archiveTime(name string) (time.Time, bool) {
	trimmed := strings.TrimSuffix(name, ".json")
	parts := strings.Split(trimmed, "-")
	if len(parts) < 3 {
		return time.Time{}, false
	}
	ts := parts[len(parts)-2] + "-" + parts[len(parts)-1]
	at, err := time.Parse("20060102-150405", ts)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}
