package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"telecall/internal/core/domain"

	"go.uber.org/zap/zaptest"
)

// fakeMedia records every call made against the media session so tests
// can assert ordering and counts without a real peer connection.
type fakeMedia struct {
	mu sync.Mutex

	offersCreated  int
	answersCreated int
	localDescs     []domain.SessionDescription
	remoteDescs    []domain.SessionDescription
	candidates     []domain.ICECandidate
	rollbacks      int
	closes         int
	clearedBefore  bool // handlers cleared before first close
	handlersClear  bool

	onCandidate func(domain.ICECandidate)
	onConnState func(domain.ConnectionState)

	failCreateOffer  error
	failCreateAnswer error
	failSetRemote    error
	failAddCandidate error
	failRollback     error
}

func (m *fakeMedia) CreateOffer() (domain.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateOffer != nil {
		return domain.SessionDescription{}, m.failCreateOffer
	}
	m.offersCreated++
	return domain.SessionDescription{Type: "offer", SDP: fmt.Sprintf("v=0 offer %d", m.offersCreated)}, nil
}

func (m *fakeMedia) CreateAnswer() (domain.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateAnswer != nil {
		return domain.SessionDescription{}, m.failCreateAnswer
	}
	m.answersCreated++
	return domain.SessionDescription{Type: "answer", SDP: fmt.Sprintf("v=0 answer %d", m.answersCreated)}, nil
}

func (m *fakeMedia) SetLocalDescription(desc domain.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localDescs = append(m.localDescs, desc)
	return nil
}

func (m *fakeMedia) SetRemoteDescription(desc domain.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetRemote != nil {
		return m.failSetRemote
	}
	m.remoteDescs = append(m.remoteDescs, desc)
	return nil
}

func (m *fakeMedia) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks++
	return m.failRollback
}

func (m *fakeMedia) AddICECandidate(c domain.ICECandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAddCandidate != nil {
		return m.failAddCandidate
	}
	m.candidates = append(m.candidates, c)
	return nil
}

func (m *fakeMedia) OnICECandidate(fn func(domain.ICECandidate)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCandidate = fn
}

func (m *fakeMedia) OnConnectionStateChange(fn func(domain.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnState = fn
}

func (m *fakeMedia) ClearHandlers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlersClear = true
	if m.closes == 0 {
		m.clearedBefore = true
	}
	m.onCandidate = nil
	m.onConnState = nil
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *fakeMedia) remoteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.remoteDescs)
}

func (m *fakeMedia) appliedCandidates() []domain.ICECandidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ICECandidate(nil), m.candidates...)
}

func (m *fakeMedia) emitCandidate(c domain.ICECandidate) {
	m.mu.Lock()
	fn := m.onCandidate
	m.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

// fakeChannel is an in-memory signal channel capturing sends and
// feeding receives from a buffered channel.
type fakeChannel struct {
	mu sync.Mutex

	sent        []domain.SignalMessage
	recv        chan domain.SignalMessage
	connects    int
	closes      int
	failConnect error
	failSend    error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{recv: make(chan domain.SignalMessage, 32)}
}

func (f *fakeChannel) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.failConnect
}

func (f *fakeChannel) Send(msg domain.SignalMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return f.failSend
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) Receive() <-chan domain.SignalMessage {
	return f.recv
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closes == 1 {
		close(f.recv)
	}
	return nil
}

func (f *fakeChannel) sentOfType(t domain.SignalType) []domain.SignalMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.SignalMessage
	for _, msg := range f.sent {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeChannel) deliver(t *testing.T, msgType domain.SignalType, id domain.ConsultationID, from domain.ConnectionID, payload interface{}) {
	t.Helper()
	msg := domain.SignalMessage{Type: msgType, ConsultationID: id, From: from}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		msg.Payload = raw
	}
	f.recv <- msg
}

func decodePayload(t *testing.T, msg domain.SignalMessage, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		t.Fatalf("decode %s payload: %v", msg.Type, err)
	}
}

func newTestNegotiator(t *testing.T, role domain.Role, media *fakeMedia, ch *fakeChannel, cfg NegotiationConfig) *NegotiationService {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	return NewNegotiationService("consult-1", role, media, ch, cfg, logger)
}
