package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/tracing"
	"telecall/pkg/validation"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Config carries the relay's connection keepalive settings.
type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration

	// NewLimiter, when set, supplies a per-connection message limiter.
	NewLimiter func() *rate.Limiter

	// Events, when set, receives lifecycle notifications. Publishing is
	// best-effort; a failed publish never fails the triggering message.
	Events Events

	// Archiver, when set, snapshots the chat when a consultation ends.
	Archiver TranscriptArchiver
}

// TranscriptArchiver moves the finished chat out of the live store.
type TranscriptArchiver interface {
	ArchiveAndClear(ctx context.Context, id domain.ConsultationID) error
}

// Events fans call lifecycle changes out to interested services.
type Events interface {
	ParticipantJoined(ctx context.Context, id domain.ConsultationID, participantID string) error
	ParticipantLeft(ctx context.Context, id domain.ConsultationID, participantID string) error
	ConsultationEnded(ctx context.Context, id domain.ConsultationID) error
	RecordingStarted(ctx context.Context, id domain.ConsultationID) error
	RecordingStopped(ctx context.Context, id domain.ConsultationID) error
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PingInterval == 0 {
		out.PingInterval = 30 * time.Second
	}
	if out.PongTimeout == 0 {
		out.PongTimeout = 60 * time.Second
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = 10 * time.Second
	}
	return out
}

// Metrics is the slice of the prometheus collector the relay reports to.
type Metrics interface {
	RecordParticipantJoined(id domain.ConsultationID)
	RecordParticipantLeft(id domain.ConsultationID)
	RecordRoomOpened()
	RecordRoomClosed(id domain.ConsultationID)
	RecordCallDuration(d time.Duration)
	RecordSignalRouted(t domain.SignalType)
	RecordChatMessage()
	RecordRelayError()
	RecordRecordingStarted()
	RecordRecordingStopped()
}

// Server routes signal messages between the two participants of a
// consultation. It never inspects SDP or candidate contents; offers,
// answers and candidates pass through with only the sender stamped on.
type Server struct {
	chatRepo ports.ChatRepository
	roomRepo ports.RoomRepository
	recorder ports.RecordingAuthority
	metrics  Metrics
	cfg      Config

	rooms map[domain.ConsultationID]*room
	mu    sync.RWMutex

	logger *zap.SugaredLogger
}

func NewServer(
	chatRepo ports.ChatRepository,
	roomRepo ports.RoomRepository,
	recorder ports.RecordingAuthority,
	metrics Metrics,
	cfg Config,
	logger *zap.SugaredLogger,
) *Server {
	return &Server{
		chatRepo: chatRepo,
		roomRepo: roomRepo,
		recorder: recorder,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
		rooms:    make(map[domain.ConsultationID]*room),
		logger:   logger,
	}
}

// HandleWebSocket upgrades the connection and serves it until it drops.
// The consultation is identified by query parameter; authentication has
// already happened in middleware by the time this runs.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("consultation_id")
	if err := validation.ValidateConsultationID(rawID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	consultationID := domain.ConsultationID(rawID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	cl := &client{
		connID:         domain.ConnectionID(uuid.NewString()),
		consultationID: consultationID,
		conn:           conn,
		writeTimeout:   s.cfg.WriteTimeout,
	}

	s.logger.Infow("participant connected",
		"consultation_id", consultationID,
		"connection_id", cl.connID,
	)

	conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()

	var limiter *rate.Limiter
	if s.cfg.NewLimiter != nil {
		limiter = s.cfg.NewLimiter()
	}

	messageChan := make(chan domain.SignalMessage, 10)
	errorChan := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	// done unblocks the reader when the select loop exits first, e.g.
	// after a ping failure with a full messageChan.
	go func() {
		for {
			var msg domain.SignalMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
			select {
			case messageChan <- msg:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				s.logger.Warnw("message rate exceeded", "connection_id", cl.connID)
				if s.metrics != nil {
					s.metrics.RecordRelayError()
				}
				s.sendError(cl, "rate limit exceeded")
				continue
			}
			if err := s.handleMessage(r.Context(), cl, msg); err != nil {
				s.logger.Infow("error handling message",
					"connection_id", cl.connID, "type", msg.Type, "error", err)
				if s.metrics != nil {
					s.metrics.RecordRelayError()
				}
				s.sendError(cl, err.Error())
			}

		case <-pingTicker.C:
			if err := cl.ping(); err != nil {
				s.logger.Infow("ping failed", "connection_id", cl.connID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "connection_id", cl.connID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.disconnect(context.Background(), cl)
}

func (s *Server) handleMessage(ctx context.Context, cl *client, msg domain.SignalMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}
	if msg.ConsultationID != "" && msg.ConsultationID != cl.consultationID {
		return fmt.Errorf("consultation mismatch: expected %s, got %s", cl.consultationID, msg.ConsultationID)
	}

	ctx, span := tracing.TraceSignal(ctx, string(msg.Type), string(cl.consultationID))
	defer span.End()

	switch msg.Type {
	case domain.SignalTypeJoin:
		return s.handleJoin(ctx, cl, msg)
	case domain.SignalTypeLeave:
		s.disconnect(ctx, cl)
		return nil
	case domain.SignalTypeOffer, domain.SignalTypeAnswer, domain.SignalTypeICECandidate:
		return s.forward(cl, msg)
	case domain.SignalTypeChatJoin:
		return s.handleChatJoin(ctx, cl, msg)
	case domain.SignalTypeChatLeave:
		return nil
	case domain.SignalTypeChatMessage:
		return s.handleChatMessage(ctx, cl, msg)
	case domain.SignalTypeRecordingStart:
		return s.handleRecordingStart(ctx, cl)
	case domain.SignalTypeRecordingStop:
		return s.handleRecordingStop(ctx, cl)
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (s *Server) handleJoin(ctx context.Context, cl *client, msg domain.SignalMessage) error {
	var payload domain.JoinPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid join payload: %w", err)
	}
	if payload.ParticipantID == "" {
		return fmt.Errorf("participant_id is required")
	}
	cl.participantID = payload.ParticipantID

	rm, opened := s.roomFor(cl.consultationID)
	rm.add(cl)
	cl.joined = true

	if err := s.roomRepo.AddParticipant(ctx, cl.consultationID, domain.Participant{
		ConnectionID: cl.connID,
		JoinedAt:     time.Now(),
	}); err != nil {
		s.logger.Warnw("failed to persist participant", "error", err)
	}

	if s.metrics != nil {
		if opened {
			s.metrics.RecordRoomOpened()
		}
		s.metrics.RecordParticipantJoined(cl.consultationID)
	}
	if s.cfg.Events != nil {
		if err := s.cfg.Events.ParticipantJoined(ctx, cl.consultationID, cl.participantID); err != nil {
			s.logger.Debugw("join event publish failed", "error", err)
		}
	}

	s.logger.Infow("participant joined room",
		"consultation_id", cl.consultationID,
		"connection_id", cl.connID,
		"participant_id", cl.participantID,
		"occupancy", rm.count(),
	)

	// Tell the others someone arrived, then give everyone the headcount.
	joinMsg := msg
	joinMsg.ConsultationID = cl.consultationID
	joinMsg.From = cl.connID
	rm.broadcast(joinMsg, cl.connID)

	return s.broadcastRoomInfo(rm)
}

func (s *Server) broadcastRoomInfo(rm *room) error {
	info, err := domain.NewSignalMessage(domain.SignalTypeRoomInfo, rm.id, domain.RoomInfoPayload{
		ParticipantCount: rm.count(),
	})
	if err != nil {
		return err
	}
	rm.broadcast(info, "")
	return nil
}

// forward relays negotiation traffic to the other side untouched.
func (s *Server) forward(cl *client, msg domain.SignalMessage) error {
	rm := s.lookupRoom(cl.consultationID)
	if rm == nil {
		return domain.ErrRoomNotFound
	}

	msg.ConsultationID = cl.consultationID
	msg.From = cl.connID
	rm.broadcast(msg, cl.connID)

	if s.metrics != nil {
		s.metrics.RecordSignalRouted(msg.Type)
	}
	return nil
}

// handleChatJoin answers with the authoritative transcript snapshot.
func (s *Server) handleChatJoin(ctx context.Context, cl *client, msg domain.SignalMessage) error {
	history, err := s.chatRepo.History(ctx, cl.consultationID)
	if err != nil {
		return fmt.Errorf("failed to load chat history: %w", err)
	}

	out, err := domain.NewSignalMessage(domain.SignalTypeChatHistory, cl.consultationID, domain.ChatHistoryPayload{
		Messages: history,
	})
	if err != nil {
		return err
	}
	return cl.send(out)
}

func (s *Server) handleChatMessage(ctx context.Context, cl *client, msg domain.SignalMessage) error {
	var chat domain.ChatMessage
	if err := json.Unmarshal(msg.Payload, &chat); err != nil {
		return fmt.Errorf("invalid chat payload: %w", err)
	}
	if err := validation.ValidateChatText(chat.Text); err != nil {
		return err
	}
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	if chat.SentAt.IsZero() {
		chat.SentAt = time.Now()
	}

	if err := s.chatRepo.Append(ctx, cl.consultationID, chat); err != nil {
		return fmt.Errorf("failed to store chat message: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordChatMessage()
	}

	rm := s.lookupRoom(cl.consultationID)
	if rm == nil {
		return domain.ErrRoomNotFound
	}

	// Echoed to everyone including the sender; clients render only what
	// comes back from the relay.
	out, err := domain.NewSignalMessage(domain.SignalTypeChatMessage, cl.consultationID, chat)
	if err != nil {
		return err
	}
	out.From = cl.connID
	rm.broadcast(out, "")
	return nil
}

func (s *Server) handleRecordingStart(ctx context.Context, cl *client) error {
	rm := s.lookupRoom(cl.consultationID)
	if rm == nil {
		return domain.ErrRoomNotFound
	}

	if err := s.recorder.Start(ctx, cl.consultationID); err != nil {
		s.logger.Warnw("recording start rejected",
			"consultation_id", cl.consultationID, "error", err)
		return s.sendRecordingError(cl, err)
	}

	if s.metrics != nil {
		s.metrics.RecordRecordingStarted()
	}
	if s.cfg.Events != nil {
		if err := s.cfg.Events.RecordingStarted(ctx, cl.consultationID); err != nil {
			s.logger.Debugw("recording event publish failed", "error", err)
		}
	}
	started, err := domain.NewSignalMessage(domain.SignalTypeRecordingStarted, cl.consultationID, nil)
	if err != nil {
		return err
	}
	rm.broadcast(started, "")
	return nil
}

func (s *Server) handleRecordingStop(ctx context.Context, cl *client) error {
	rm := s.lookupRoom(cl.consultationID)
	if rm == nil {
		return domain.ErrRoomNotFound
	}

	if err := s.recorder.Stop(ctx, cl.consultationID); err != nil {
		s.logger.Warnw("recording stop rejected",
			"consultation_id", cl.consultationID, "error", err)
		return s.sendRecordingError(cl, err)
	}

	if s.metrics != nil {
		s.metrics.RecordRecordingStopped()
	}
	if s.cfg.Events != nil {
		if err := s.cfg.Events.RecordingStopped(ctx, cl.consultationID); err != nil {
			s.logger.Debugw("recording event publish failed", "error", err)
		}
	}
	stopped, err := domain.NewSignalMessage(domain.SignalTypeRecordingStopped, cl.consultationID, nil)
	if err != nil {
		return err
	}
	rm.broadcast(stopped, "")
	return nil
}

// sendRecordingError reports a rejected recording request back to the
// requester only; the other side's state is untouched.
func (s *Server) sendRecordingError(cl *client, cause error) error {
	out, err := domain.NewSignalMessage(domain.SignalTypeRecordingError, cl.consultationID, domain.RecordingErrorPayload{
		Reason: cause.Error(),
	})
	if err != nil {
		return err
	}
	return cl.send(out)
}

// EndConsultation tells every participant the consultation is over and
// stops an active recording. Invoked from the REST surface when the
// initiator ends the call.
func (s *Server) EndConsultation(ctx context.Context, id domain.ConsultationID) {
	if active, err := s.recorder.Active(ctx, id); err == nil && active {
		if err := s.recorder.Stop(ctx, id); err == nil && s.metrics != nil {
			s.metrics.RecordRecordingStopped()
		}
	}

	if rm := s.lookupRoom(id); rm != nil {
		ended, err := domain.NewSignalMessage(domain.SignalTypeConsultationEnded, id, nil)
		if err != nil {
			s.logger.Errorw("failed to build end notice", "error", err)
		} else {
			rm.broadcast(ended, "")
		}
	}

	if s.cfg.Events != nil {
		if err := s.cfg.Events.ConsultationEnded(ctx, id); err != nil {
			s.logger.Debugw("end event publish failed", "error", err)
		}
	}
	if s.cfg.Archiver != nil {
		if err := s.cfg.Archiver.ArchiveAndClear(ctx, id); err != nil {
			s.logger.Warnw("transcript archive failed", "consultation_id", id, "error", err)
		}
	}
	s.logger.Infow("consultation ended", "consultation_id", id)
}

func (s *Server) disconnect(ctx context.Context, cl *client) {
	if !cl.joined {
		return
	}
	cl.joined = false

	rm := s.lookupRoom(cl.consultationID)
	if rm == nil {
		return
	}

	remaining := rm.remove(cl.connID)
	if err := s.roomRepo.RemoveParticipant(ctx, cl.consultationID, cl.connID); err != nil {
		s.logger.Warnw("failed to remove participant", "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordParticipantLeft(cl.consultationID)
	}
	if s.cfg.Events != nil {
		if err := s.cfg.Events.ParticipantLeft(ctx, cl.consultationID, cl.participantID); err != nil {
			s.logger.Debugw("leave event publish failed", "error", err)
		}
	}

	if remaining == 0 {
		s.mu.Lock()
		delete(s.rooms, cl.consultationID)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordRoomClosed(cl.consultationID)
			s.metrics.RecordCallDuration(time.Since(rm.openedAt))
		}
	} else {
		leave, err := domain.NewSignalMessage(domain.SignalTypeLeave, cl.consultationID, nil)
		if err == nil {
			leave.From = cl.connID
			rm.broadcast(leave, cl.connID)
		}
		s.broadcastRoomInfo(rm)
	}

	s.logger.Infow("participant disconnected",
		"consultation_id", cl.consultationID,
		"connection_id", cl.connID,
		"remaining", remaining,
	)
}

func (s *Server) sendError(cl *client, message string) {
	out, err := domain.NewSignalMessage(domain.SignalTypeError, cl.consultationID, domain.ErrorPayload{
		Message: message,
	})
	if err != nil {
		return
	}
	cl.send(out)
}

// roomFor returns the live room, creating it if needed. The second
// return reports whether this call opened it.
func (s *Server) roomFor(id domain.ConsultationID) (*room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, exists := s.rooms[id]
	if !exists {
		rm = newRoom(id)
		s.rooms[id] = rm
	}
	return rm, !exists
}

func (s *Server) lookupRoom(id domain.ConsultationID) *room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[id]
}

// RoomCount reports how many rooms are live, for health reporting.
func (s *Server) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
