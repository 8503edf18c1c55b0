package services

import (
	"fmt"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"go.uber.org/zap"
)

// NegotiationConfig tunes the state machine. Zero Timeout disables the
// stuck-phase watchdog.
type NegotiationConfig struct {
	Timeout  time.Duration
	QueueCap int
}

// NegotiationService drives the offer/answer/candidate exchange for one
// call session and resolves simultaneous-offer collisions by role:
// the responder is polite and yields, the initiator's offer wins.
//
// All state transitions happen under a single mutex; operations are
// short and never block while holding it.
type NegotiationService struct {
	mu sync.Mutex

	consultationID domain.ConsultationID
	role           domain.Role
	media          ports.MediaSession
	channel        ports.SignalChannel
	logger         *zap.SugaredLogger

	phase         domain.SignalingPhase
	offerSent     bool
	answered      bool
	remoteDescSet bool
	queue         *CandidateQueue

	timeout time.Duration
	timer   *time.Timer
}

func NewNegotiationService(
	consultationID domain.ConsultationID,
	role domain.Role,
	media ports.MediaSession,
	channel ports.SignalChannel,
	cfg NegotiationConfig,
	logger *zap.SugaredLogger,
) *NegotiationService {
	n := &NegotiationService{
		consultationID: consultationID,
		role:           role,
		media:          media,
		channel:        channel,
		logger:         logger,
		phase:          domain.PhaseStable,
		queue:          NewCandidateQueue(cfg.QueueCap, logger),
		timeout:        cfg.Timeout,
	}

	// Candidates are trickled the moment they are gathered, in any phase.
	media.OnICECandidate(n.sendLocalCandidate)

	return n
}

// AttemptOffer creates and sends a local offer. It is an idempotent
// no-op unless the phase is stable and no offer has been sent this
// call session, so both the peer-joined and room-info triggers can
// funnel into it safely.
func (n *NegotiationService) AttemptOffer() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.phase != domain.PhaseStable || n.offerSent {
		n.logger.Debugw("skipping offer attempt",
			"phase", n.phase,
			"offer_sent", n.offerSent,
		)
		return nil
	}

	offer, err := n.media.CreateOffer()
	if err != nil {
		n.logger.Errorw("failed to create offer", "error", err)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := n.media.SetLocalDescription(offer); err != nil {
		n.logger.Errorw("failed to set local offer", "error", err)
		return fmt.Errorf("set local offer: %w", err)
	}

	n.phase = domain.PhaseHaveLocalOffer
	n.offerSent = true
	n.armTimeout()

	if err := n.send(domain.SignalTypeOffer, domain.OfferPayload{SDP: offer}); err != nil {
		n.logger.Errorw("failed to send offer", "error", err)
		return fmt.Errorf("send offer: %w", err)
	}

	n.logger.Infow("offer sent", "role", n.role)
	return nil
}

// HandleOffer applies an incoming remote offer and replies with an
// answer. On a collision (an own offer is outstanding) the polite side
// rolls back its offer and proceeds; the impolite side discards the
// incoming offer entirely.
func (n *NegotiationService) HandleOffer(desc domain.SessionDescription) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.phase != domain.PhaseStable {
		if !n.role.Polite() {
			n.logger.Warnw("offer collision, impolite peer ignoring remote offer", "phase", n.phase)
			return nil
		}
		// Rollback is best-effort: a failed rollback is logged and the
		// flow continues to apply the remote offer anyway.
		if err := n.media.Rollback(); err != nil {
			n.logger.Warnw("rollback failed, continuing", "error", err)
		}
		n.phase = domain.PhaseStable
	}

	if err := n.media.SetRemoteDescription(desc); err != nil {
		n.logger.Errorw("failed to apply remote offer", "error", err)
		return fmt.Errorf("set remote offer: %w", err)
	}
	n.phase = domain.PhaseHaveRemoteOffer
	n.remoteDescSet = true

	answer, err := n.media.CreateAnswer()
	if err != nil {
		n.logger.Errorw("failed to create answer", "error", err)
		return fmt.Errorf("create answer: %w", err)
	}
	if err := n.media.SetLocalDescription(answer); err != nil {
		n.logger.Errorw("failed to set local answer", "error", err)
		return fmt.Errorf("set local answer: %w", err)
	}

	n.phase = domain.PhaseStable
	n.answered = true
	n.disarmTimeout()

	if err := n.send(domain.SignalTypeAnswer, domain.AnswerPayload{SDP: answer}); err != nil {
		n.logger.Errorw("failed to send answer", "error", err)
		return fmt.Errorf("send answer: %w", err)
	}

	n.drainQueueLocked()
	n.logger.Infow("answered remote offer", "role", n.role)
	return nil
}

// HandleAnswer applies an incoming answer. Answers are accepted only
// while a local offer is outstanding; anything else is stale or
// out-of-turn and is discarded with a warning.
func (n *NegotiationService) HandleAnswer(desc domain.SessionDescription) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.phase != domain.PhaseHaveLocalOffer {
		n.logger.Warnw("ignoring unexpected answer", "phase", n.phase)
		return nil
	}

	if err := n.media.SetRemoteDescription(desc); err != nil {
		n.logger.Errorw("failed to apply answer", "error", err)
		return fmt.Errorf("set remote answer: %w", err)
	}

	n.phase = domain.PhaseStable
	n.remoteDescSet = true
	n.disarmTimeout()
	n.drainQueueLocked()

	n.logger.Infow("answer applied", "role", n.role)
	return nil
}

// HandleRemoteCandidate applies a trickled remote candidate, buffering
// it while no remote description has been applied yet.
func (n *NegotiationService) HandleRemoteCandidate(c domain.ICECandidate) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.remoteDescSet {
		n.queue.Enqueue(c)
		return nil
	}

	if err := n.media.AddICECandidate(c); err != nil {
		n.logger.Warnw("failed to apply remote candidate", "error", err)
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

// Reset returns the state machine to its initial state so a future
// call attempt starts clean. Called from lifecycle cleanup.
func (n *NegotiationService) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.disarmTimeout()
	n.phase = domain.PhaseStable
	n.offerSent = false
	n.answered = false
	n.remoteDescSet = false
	n.queue.Clear()
}

func (n *NegotiationService) Phase() domain.SignalingPhase {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.phase
}

func (n *NegotiationService) OfferSent() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.offerSent
}

func (n *NegotiationService) Answered() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.answered
}

func (n *NegotiationService) QueuedCandidates() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queue.Len()
}

func (n *NegotiationService) sendLocalCandidate(c domain.ICECandidate) {
	if err := n.send(domain.SignalTypeICECandidate, domain.ICECandidatePayload{Candidate: c}); err != nil {
		n.logger.Warnw("failed to trickle local candidate", "error", err)
	}
}

func (n *NegotiationService) drainQueueLocked() {
	applied := n.queue.Drain(n.media.AddICECandidate)
	if applied > 0 {
		n.logger.Infow("drained buffered candidates", "applied", applied)
	}
}

func (n *NegotiationService) send(t domain.SignalType, payload interface{}) error {
	msg, err := domain.NewSignalMessage(t, n.consultationID, payload)
	if err != nil {
		return err
	}
	return n.channel.Send(msg)
}

// armTimeout starts the stuck-phase watchdog. If the phase has not
// returned to stable within the timeout, the pending local offer is
// abandoned so an explicit user retry can start over.
func (n *NegotiationService) armTimeout() {
	if n.timeout <= 0 {
		return
	}
	n.disarmTimeout()
	n.timer = time.AfterFunc(n.timeout, n.abortStuckNegotiation)
}

func (n *NegotiationService) disarmTimeout() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *NegotiationService) abortStuckNegotiation() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.phase == domain.PhaseStable {
		return
	}

	n.logger.Warnw("negotiation stuck, aborting back to stable",
		"phase", n.phase,
		"timeout", n.timeout,
	)
	if err := n.media.Rollback(); err != nil {
		n.logger.Warnw("rollback on abort failed", "error", err)
	}
	n.phase = domain.PhaseStable
	n.offerSent = false
}
