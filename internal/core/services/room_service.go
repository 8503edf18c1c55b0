package services

import (
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"go.uber.org/zap"
)

// offerAttempter is what the room manager needs from the negotiation
// side: a single race-tolerant offer trigger.
type offerAttempter interface {
	AttemptOffer() error
}

// RoomService joins the consultation room, keeps the local view of the
// roster and turns membership events into offer attempts. The roster is
// authoritative only for this side; convergence comes from broadcast.
type RoomService struct {
	mu sync.RWMutex

	consultationID domain.ConsultationID
	participantID  string
	role           domain.Role
	channel        ports.SignalChannel
	negotiator     offerAttempter
	logger         *zap.SugaredLogger

	roster map[domain.ConnectionID]domain.Participant

	// onEnded is invoked when the remote side ends the consultation;
	// the lifecycle controller hooks its teardown here.
	onEnded func()
}

func NewRoomService(
	consultationID domain.ConsultationID,
	participantID string,
	role domain.Role,
	channel ports.SignalChannel,
	negotiator offerAttempter,
	onEnded func(),
	logger *zap.SugaredLogger,
) *RoomService {
	return &RoomService{
		consultationID: consultationID,
		participantID:  participantID,
		role:           role,
		channel:        channel,
		negotiator:     negotiator,
		onEnded:        onEnded,
		logger:         logger,
		roster:         make(map[domain.ConnectionID]domain.Participant),
	}
}

// Join announces this participant to the room. Side effect only; the
// roster fills in as notifications arrive.
func (r *RoomService) Join() error {
	msg, err := domain.NewSignalMessage(domain.SignalTypeJoin, r.consultationID, domain.JoinPayload{
		ParticipantID: r.participantID,
	})
	if err != nil {
		return err
	}
	if err := r.channel.Send(msg); err != nil {
		return err
	}
	r.logger.Infow("joined room", "participant_id", r.participantID, "role", r.role)
	return nil
}

// HandlePeerJoined records the peer and, on the initiator side, kicks
// off an offer attempt. The attempt is guarded by the negotiator's
// offerSent flag, so the redundant room-info trigger cannot produce a
// duplicate offer.
func (r *RoomService) HandlePeerJoined(conn domain.ConnectionID) {
	r.mu.Lock()
	r.roster[conn] = domain.Participant{
		ConnectionID: conn,
		JoinedAt:     time.Now(),
	}
	count := len(r.roster)
	r.mu.Unlock()

	r.logger.Infow("peer joined", "connection_id", conn, "roster_size", count)
	r.maybeOffer()
}

// HandleRoomInfo is the deferred fallback trigger, covering a missed
// peer-joined event after reconnect or late subscription.
func (r *RoomService) HandleRoomInfo(participantCount int) {
	r.logger.Debugw("room info", "participant_count", participantCount)
	if participantCount >= 2 {
		r.maybeOffer()
	}
}

// HandlePeerLeft trims the roster. The call continues degraded until
// explicitly ended; no renegotiation and no connection close here.
func (r *RoomService) HandlePeerLeft(conn domain.ConnectionID) {
	r.mu.Lock()
	delete(r.roster, conn)
	count := len(r.roster)
	r.mu.Unlock()

	r.logger.Infow("peer left", "connection_id", conn, "roster_size", count)
}

// HandleConsultationEnded hands control to the lifecycle teardown.
func (r *RoomService) HandleConsultationEnded() {
	r.logger.Infow("consultation ended by remote")
	if r.onEnded != nil {
		r.onEnded()
	}
}

// Roster returns the local view of current participants.
func (r *RoomService) Roster() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants := make([]domain.Participant, 0, len(r.roster))
	for _, p := range r.roster {
		participants = append(participants, p)
	}
	return participants
}

// Reset clears the roster for a clean future call attempt.
func (r *RoomService) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roster = make(map[domain.ConnectionID]domain.Participant)
}

func (r *RoomService) maybeOffer() {
	if r.role != domain.RoleInitiator {
		return
	}
	if err := r.negotiator.AttemptOffer(); err != nil {
		r.logger.Errorw("offer attempt failed", "error", err)
	}
}
