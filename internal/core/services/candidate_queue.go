package services

import (
	"telecall/internal/core/domain"

	"go.uber.org/zap"
)

// CandidateQueue buffers remote ICE candidates that arrive before a
// remote description exists. It is owned by the negotiation service and
// accessed only under its mutex, so it carries no lock of its own.
type CandidateQueue struct {
	items   []domain.ICECandidate
	cap     int
	dropped int
	logger  *zap.SugaredLogger
}

func NewCandidateQueue(cap int, logger *zap.SugaredLogger) *CandidateQueue {
	if cap <= 0 {
		cap = 64
	}
	return &CandidateQueue{
		cap:    cap,
		logger: logger,
	}
}

// Enqueue appends a candidate in receipt order. Beyond the cap the
// candidate is dropped with a diagnostic warning; an unbounded queue
// would grow forever if a remote description never arrives.
func (q *CandidateQueue) Enqueue(c domain.ICECandidate) {
	if len(q.items) >= q.cap {
		q.dropped++
		q.logger.Warnw("candidate queue full, dropping candidate",
			"cap", q.cap,
			"dropped_total", q.dropped,
		)
		return
	}
	q.items = append(q.items, c)
}

// Drain applies all queued candidates in receipt order and empties the
// queue. Idempotent when already empty. Application errors are logged
// and do not stop the drain; a single bad candidate must not discard
// the rest.
func (q *CandidateQueue) Drain(apply func(domain.ICECandidate) error) int {
	if len(q.items) == 0 {
		return 0
	}

	applied := 0
	for _, c := range q.items {
		if err := apply(c); err != nil {
			q.logger.Warnw("failed to apply buffered candidate", "error", err)
			continue
		}
		applied++
	}
	q.items = nil
	return applied
}

func (q *CandidateQueue) Len() int {
	return len(q.items)
}

// Clear empties the queue without applying anything.
func (q *CandidateQueue) Clear() {
	q.items = nil
	q.dropped = 0
}
