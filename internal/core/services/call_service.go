package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"
	"telecall/pkg/retry"

	"go.uber.org/zap"
)

// CallConfig carries everything one call attempt needs from configuration.
type CallConfig struct {
	ParticipantID      string
	ICEServers         []domain.ICEServer
	NegotiationTimeout time.Duration
	CandidateQueueCap  int
	ConnectRetry       retry.Config
}

// CallService is the lifecycle controller for one call attempt. It
// sequences startup, owns the duration timer, dispatches incoming
// channel messages to the room, negotiation and control services, and
// guarantees idempotent teardown. A CallService is used for exactly one
// attempt; a new attempt gets a new CallService with a fresh channel.
type CallService struct {
	mu sync.Mutex

	consultationID domain.ConsultationID
	api            ports.ConsultationAPI
	mediaFactory   ports.MediaSessionFactory
	channel        ports.SignalChannel
	cfg            CallConfig
	observer       ControlObserver
	logger         *zap.SugaredLogger

	consultation *domain.Consultation
	role         domain.Role
	media        ports.MediaSession
	negotiator   *NegotiationService
	room         *RoomService
	control      *ControlService

	connState    atomic.Value // domain.ConnectionState
	durationSecs int64
	durStop      chan struct{}

	started bool
	closed  bool
}

func NewCallService(
	consultationID domain.ConsultationID,
	api ports.ConsultationAPI,
	mediaFactory ports.MediaSessionFactory,
	channel ports.SignalChannel,
	cfg CallConfig,
	observer ControlObserver,
	logger *zap.SugaredLogger,
) *CallService {
	s := &CallService{
		consultationID: consultationID,
		api:            api,
		mediaFactory:   mediaFactory,
		channel:        channel,
		cfg:            cfg,
		observer:       observer,
		logger:         logger,
	}
	s.connState.Store(domain.ConnectionStateNew)
	return s
}

// Start runs the startup sequence: authorize, assign role, acquire
// media, connect the channel, join room and chat, start the duration
// timer. Each step's failure aborts the remaining steps, tears down
// whatever was already built and returns a classified error.
func (s *CallService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("call already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := s.startup(ctx); err != nil {
		s.Cleanup()
		return err
	}
	return nil
}

func (s *CallService) startup(ctx context.Context) error {
	consultation, err := s.api.Status(ctx, s.consultationID)
	if err != nil {
		return fmt.Errorf("consultation status: %w", err)
	}

	info, err := s.api.Start(ctx, s.consultationID)
	if err != nil {
		return fmt.Errorf("start call: %w", err)
	}

	media, err := s.mediaFactory.NewMediaSession(s.cfg.ICEServers)
	if err != nil {
		return apperrors.NewMediaAccessError(err)
	}

	s.mu.Lock()
	s.consultation = consultation
	s.role = info.Role
	s.media = media
	s.mu.Unlock()

	media.OnConnectionStateChange(func(state domain.ConnectionState) {
		s.connState.Store(state)
		s.logger.Infow("media connection state", "state", state)
	})

	if err := retry.Do(ctx, s.cfg.ConnectRetry, func() error {
		return s.channel.Connect(ctx)
	}); err != nil {
		return apperrors.NewChannelError(err)
	}

	negotiator := NewNegotiationService(s.consultationID, info.Role, media, s.channel, NegotiationConfig{
		Timeout:  s.cfg.NegotiationTimeout,
		QueueCap: s.cfg.CandidateQueueCap,
	}, s.logger)
	room := NewRoomService(s.consultationID, s.cfg.ParticipantID, info.Role, s.channel, negotiator, s.onRemoteEnded, s.logger)
	control := NewControlService(s.consultationID, s.cfg.ParticipantID, info.Role, s.channel, s.observer, s.logger)

	s.mu.Lock()
	s.negotiator = negotiator
	s.room = room
	s.control = control
	s.durStop = make(chan struct{})
	s.mu.Unlock()

	go s.dispatchLoop()

	if err := room.Join(); err != nil {
		return apperrors.NewChannelError(err)
	}
	if err := control.JoinChat(); err != nil {
		return apperrors.NewChannelError(err)
	}

	go s.countDuration(s.durStop)

	s.logger.Infow("call started", "role", info.Role)
	return nil
}

// EndCall terminates the call locally. The initiator additionally
// notifies the consultation service, best-effort.
func (s *CallService) EndCall(ctx context.Context) {
	s.mu.Lock()
	role := s.role
	s.mu.Unlock()

	if role == domain.RoleInitiator {
		if err := s.api.End(ctx, s.consultationID); err != nil {
			s.logger.Warnw("failed to notify call end", "error", err)
		}
	}
	s.Cleanup()
}

// Cleanup tears everything down. Safe to call multiple times and from
// any point in startup; every release below tolerates a nil or
// already-released target.
func (s *CallService) Cleanup() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	media := s.media
	negotiator := s.negotiator
	room := s.room
	control := s.control
	durStop := s.durStop
	s.mu.Unlock()

	if durStop != nil {
		close(durStop)
	}

	if media != nil {
		// Handlers must be detached before close so events from the
		// dying connection cannot fire into torn-down state.
		media.ClearHandlers()
		if err := media.Close(); err != nil {
			s.logger.Warnw("failed to close media session", "error", err)
		}
	}

	if control != nil {
		control.LeaveChat()
		control.Reset()
	}

	if err := s.channel.Close(); err != nil {
		s.logger.Warnw("failed to close signal channel", "error", err)
	}

	if negotiator != nil {
		negotiator.Reset()
	}
	if room != nil {
		room.Reset()
	}

	atomic.StoreInt64(&s.durationSecs, 0)
	s.connState.Store(domain.ConnectionStateClosed)
	s.logger.Infow("call cleaned up")
}

// Role reports the negotiation role assigned at startup.
func (s *CallService) Role() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *CallService) Consultation() *domain.Consultation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consultation
}

func (s *CallService) Negotiator() *NegotiationService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiator
}

func (s *CallService) Room() *RoomService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *CallService) Control() *ControlService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.control
}

func (s *CallService) ConnectionState() domain.ConnectionState {
	return s.connState.Load().(domain.ConnectionState)
}

func (s *CallService) DurationSeconds() int64 {
	return atomic.LoadInt64(&s.durationSecs)
}

// dispatchLoop is the call's single thread of control: every incoming
// message is handled here in arrival order, which is what makes the
// phase field sufficient as the negotiation mutual-exclusion mechanism.
func (s *CallService) dispatchLoop() {
	for msg := range s.channel.Receive() {
		s.dispatch(msg)
	}
	s.logger.Infow("signal channel closed, dispatch loop ending")
}

func (s *CallService) dispatch(msg domain.SignalMessage) {
	if msg.ConsultationID != "" && msg.ConsultationID != s.consultationID {
		s.logger.Warnw("dropping message for other consultation", "got", msg.ConsultationID)
		return
	}

	s.mu.Lock()
	negotiator := s.negotiator
	room := s.room
	control := s.control
	s.mu.Unlock()
	if negotiator == nil || room == nil || control == nil {
		return
	}

	switch msg.Type {
	case domain.SignalTypeJoin:
		room.HandlePeerJoined(msg.From)

	case domain.SignalTypeLeave:
		room.HandlePeerLeft(msg.From)

	case domain.SignalTypeRoomInfo:
		var payload domain.RoomInfoPayload
		if !s.decode(msg, &payload) {
			return
		}
		room.HandleRoomInfo(payload.ParticipantCount)

	case domain.SignalTypeOffer:
		var payload domain.OfferPayload
		if !s.decode(msg, &payload) {
			return
		}
		if err := negotiator.HandleOffer(payload.SDP); err != nil {
			s.logger.Errorw("offer handling failed", "error", apperrors.NewNegotiationError(err, "offer handling failed"))
		}

	case domain.SignalTypeAnswer:
		var payload domain.AnswerPayload
		if !s.decode(msg, &payload) {
			return
		}
		if err := negotiator.HandleAnswer(payload.SDP); err != nil {
			s.logger.Errorw("answer handling failed", "error", apperrors.NewNegotiationError(err, "answer handling failed"))
		}

	case domain.SignalTypeICECandidate:
		var payload domain.ICECandidatePayload
		if !s.decode(msg, &payload) {
			return
		}
		if err := negotiator.HandleRemoteCandidate(payload.Candidate); err != nil {
			s.logger.Warnw("candidate handling failed", "error", err)
		}

	case domain.SignalTypeChatHistory:
		var payload domain.ChatHistoryPayload
		if !s.decode(msg, &payload) {
			return
		}
		control.HandleChatHistory(payload.Messages)

	case domain.SignalTypeChatMessage:
		var payload domain.ChatMessage
		if !s.decode(msg, &payload) {
			return
		}
		control.HandleChatMessage(payload)

	case domain.SignalTypeRecordingStarted:
		control.HandleRecordingStarted()

	case domain.SignalTypeRecordingStopped:
		control.HandleRecordingStopped()

	case domain.SignalTypeRecordingError:
		var payload domain.RecordingErrorPayload
		if !s.decode(msg, &payload) {
			return
		}
		control.HandleRecordingError(payload.Reason)

	case domain.SignalTypeConsultationEnded:
		room.HandleConsultationEnded()

	case domain.SignalTypeError:
		var payload domain.ErrorPayload
		if s.decode(msg, &payload) {
			s.logger.Warnw("relay error", "message", payload.Message)
		}

	default:
		s.logger.Debugw("ignoring unknown signal", "type", msg.Type)
	}
}

func (s *CallService) decode(msg domain.SignalMessage, out interface{}) bool {
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		s.logger.Warnw("invalid signal payload", "type", msg.Type, "error", err)
		return false
	}
	return true
}

func (s *CallService) onRemoteEnded() {
	s.Cleanup()
}

func (s *CallService) countDuration(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			atomic.AddInt64(&s.durationSecs, 1)
		case <-stop:
			return
		}
	}
}
