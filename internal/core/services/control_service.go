package services

import (
	"sync"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"go.uber.org/zap"
)

// ControlObserver receives UI-facing notifications from the control
// layer. All methods are optional; a nil observer is a no-op.
type ControlObserver struct {
	OnTranscript     func(messages []domain.ChatMessage)
	OnRecording      func(active bool)
	OnRecordingError func(reason string)
}

// ControlService multiplexes chat and recording signals over the call's
// channel. It never blocks negotiation: control messages interleave
// freely with offers and candidates.
//
// Recording state is confirmation-based. Local flags flip only on
// recording_started/recording_stopped from the recording authority,
// never optimistically on the request.
type ControlService struct {
	mu sync.Mutex

	consultationID domain.ConsultationID
	participantID  string
	role           domain.Role
	channel        ports.SignalChannel
	observer       ControlObserver
	logger         *zap.SugaredLogger

	chatJoined bool
	transcript []domain.ChatMessage

	recordingActive  bool
	recordingSeconds int
	recStop          chan struct{}
}

func NewControlService(
	consultationID domain.ConsultationID,
	participantID string,
	role domain.Role,
	channel ports.SignalChannel,
	observer ControlObserver,
	logger *zap.SugaredLogger,
) *ControlService {
	return &ControlService{
		consultationID: consultationID,
		participantID:  participantID,
		role:           role,
		channel:        channel,
		observer:       observer,
		logger:         logger,
	}
}

// JoinChat subscribes to the consultation's chat. The relay answers
// with an authoritative history snapshot.
func (c *ControlService) JoinChat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chatJoined {
		return nil
	}
	if err := c.send(domain.SignalTypeChatJoin, domain.ChatJoinPayload{
		ParticipantID: c.participantID,
		Role:          c.role,
	}); err != nil {
		return err
	}
	c.chatJoined = true
	return nil
}

// LeaveChat unsubscribes. Safe to call even if chat was never joined.
func (c *ControlService) LeaveChat() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.chatJoined {
		return
	}
	if err := c.send(domain.SignalTypeChatLeave, nil); err != nil {
		c.logger.Warnw("failed to send chat leave", "error", err)
	}
	c.chatJoined = false
}

// SendChatMessage emits a chat message. Empty text is ignored.
func (c *ControlService) SendChatMessage(text string) error {
	if text == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.send(domain.SignalTypeChatMessage, domain.ChatMessage{
		SenderID:   c.participantID,
		SenderRole: c.role,
		Text:       text,
		SentAt:     time.Now(),
	})
}

// HandleChatHistory replaces the local transcript with the relay's
// snapshot. Arrives once per chat join.
func (c *ControlService) HandleChatHistory(messages []domain.ChatMessage) {
	c.mu.Lock()
	c.transcript = append([]domain.ChatMessage(nil), messages...)
	snapshot := c.transcriptLocked()
	c.mu.Unlock()

	c.notifyTranscript(snapshot)
}

// HandleChatMessage appends one incoming message.
func (c *ControlService) HandleChatMessage(msg domain.ChatMessage) {
	c.mu.Lock()
	c.transcript = append(c.transcript, msg)
	snapshot := c.transcriptLocked()
	c.mu.Unlock()

	c.notifyTranscript(snapshot)
}

// StartRecording asks the recording authority to start. Local state is
// untouched until the confirmation arrives.
func (c *ControlService) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(domain.SignalTypeRecordingStart, nil)
}

// StopRecording asks the recording authority to stop.
func (c *ControlService) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(domain.SignalTypeRecordingStop, nil)
}

// HandleRecordingStarted flips local state on and restarts the duration
// counter.
func (c *ControlService) HandleRecordingStarted() {
	c.mu.Lock()
	if c.recordingActive {
		c.mu.Unlock()
		return
	}
	c.recordingActive = true
	c.recordingSeconds = 0
	c.recStop = make(chan struct{})
	go c.countRecording(c.recStop)
	c.mu.Unlock()

	c.logger.Infow("recording started")
	if c.observer.OnRecording != nil {
		c.observer.OnRecording(true)
	}
}

// HandleRecordingStopped flips local state off.
func (c *ControlService) HandleRecordingStopped() {
	c.mu.Lock()
	if !c.recordingActive {
		c.mu.Unlock()
		return
	}
	c.recordingActive = false
	c.stopRecordingCounterLocked()
	c.mu.Unlock()

	c.logger.Infow("recording stopped")
	if c.observer.OnRecording != nil {
		c.observer.OnRecording(false)
	}
}

// HandleRecordingError surfaces a transient notice; recording state and
// the call itself are unaffected.
func (c *ControlService) HandleRecordingError(reason string) {
	c.logger.Warnw("recording error", "reason", reason)
	if c.observer.OnRecordingError != nil {
		c.observer.OnRecordingError(reason)
	}
}

func (c *ControlService) Transcript() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcriptLocked()
}

func (c *ControlService) RecordingActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordingActive
}

func (c *ControlService) RecordingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordingSeconds
}

// Reset clears transcript and recording state. Part of lifecycle
// cleanup; safe to call repeatedly.
func (c *ControlService) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopRecordingCounterLocked()
	c.chatJoined = false
	c.transcript = nil
	c.recordingActive = false
	c.recordingSeconds = 0
}

func (c *ControlService) transcriptLocked() []domain.ChatMessage {
	return append([]domain.ChatMessage(nil), c.transcript...)
}

func (c *ControlService) notifyTranscript(snapshot []domain.ChatMessage) {
	if c.observer.OnTranscript != nil {
		c.observer.OnTranscript(snapshot)
	}
}

func (c *ControlService) countRecording(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			if c.recordingActive {
				c.recordingSeconds++
			}
			c.mu.Unlock()
		case <-stop:
			return
		}
	}
}

func (c *ControlService) stopRecordingCounterLocked() {
	if c.recStop != nil {
		close(c.recStop)
		c.recStop = nil
	}
}

func (c *ControlService) send(t domain.SignalType, payload interface{}) error {
	msg, err := domain.NewSignalMessage(t, c.consultationID, payload)
	if err != nil {
		return err
	}
	return c.channel.Send(msg)
}
