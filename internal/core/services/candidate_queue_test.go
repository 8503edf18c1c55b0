package services

import (
	"errors"
	"fmt"
	"testing"

	"telecall/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestCandidateQueue_DrainPreservesOrder(t *testing.T) {
	q := NewCandidateQueue(16, zaptest.NewLogger(t).Sugar())

	for i := 0; i < 3; i++ {
		q.Enqueue(domain.ICECandidate{Candidate: fmt.Sprintf("candidate-%d", i)})
	}

	var applied []string
	n := q.Drain(func(c domain.ICECandidate) error {
		applied = append(applied, c.Candidate)
		return nil
	})

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"candidate-0", "candidate-1", "candidate-2"}, applied)
	assert.Equal(t, 0, q.Len())
}

func TestCandidateQueue_DrainIdempotentWhenEmpty(t *testing.T) {
	q := NewCandidateQueue(16, zaptest.NewLogger(t).Sugar())

	calls := 0
	apply := func(domain.ICECandidate) error {
		calls++
		return nil
	}

	q.Enqueue(domain.ICECandidate{Candidate: "only"})
	assert.Equal(t, 1, q.Drain(apply))
	assert.Equal(t, 0, q.Drain(apply))
	assert.Equal(t, 0, q.Drain(apply))
	assert.Equal(t, 1, calls)
}

func TestCandidateQueue_CapDropsOverflow(t *testing.T) {
	q := NewCandidateQueue(2, zaptest.NewLogger(t).Sugar())

	q.Enqueue(domain.ICECandidate{Candidate: "a"})
	q.Enqueue(domain.ICECandidate{Candidate: "b"})
	q.Enqueue(domain.ICECandidate{Candidate: "c"}) // dropped

	assert.Equal(t, 2, q.Len())

	var applied []string
	q.Drain(func(c domain.ICECandidate) error {
		applied = append(applied, c.Candidate)
		return nil
	})
	assert.Equal(t, []string{"a", "b"}, applied)
}

func TestCandidateQueue_ApplyErrorDoesNotStopDrain(t *testing.T) {
	q := NewCandidateQueue(16, zaptest.NewLogger(t).Sugar())

	q.Enqueue(domain.ICECandidate{Candidate: "bad"})
	q.Enqueue(domain.ICECandidate{Candidate: "good"})

	n := q.Drain(func(c domain.ICECandidate) error {
		if c.Candidate == "bad" {
			return errors.New("apply failed")
		}
		return nil
	})

	assert.Equal(t, 1, n)
	assert.Equal(t, 0, q.Len())
}

func TestCandidateQueue_Clear(t *testing.T) {
	q := NewCandidateQueue(16, zaptest.NewLogger(t).Sugar())

	q.Enqueue(domain.ICECandidate{Candidate: "a"})
	q.Clear()

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Drain(func(domain.ICECandidate) error { return nil }))
}
