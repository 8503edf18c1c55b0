package webrtc

import (
	"fmt"
	"sync"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// MediaSession wraps a pion PeerConnection behind the ports.MediaSession
// interface. Handler registration is guarded so ClearHandlers can cut
// callbacks off before the connection is closed.
type MediaSession struct {
	pc     *webrtc.PeerConnection
	logger *zap.SugaredLogger

	mu          sync.Mutex
	onCandidate func(domain.ICECandidate)
	onConnState func(domain.ConnectionState)
	closed      bool
}

// Factory builds media sessions from domain ICE server configs.
type Factory struct {
	logger *zap.SugaredLogger
}

func NewFactory(logger *zap.SugaredLogger) *Factory {
	return &Factory{logger: logger}
}

func (f *Factory) NewMediaSession(iceServers []domain.ICEServer) (ports.MediaSession, error) {
	servers := make([]webrtc.ICEServer, 0, len(iceServers))
	for _, s := range iceServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	session := &MediaSession{pc: pc, logger: f.logger}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			// End-of-candidates marker, nothing to trickle.
			return
		}
		init := c.ToJSON()
		session.mu.Lock()
		fn := session.onCandidate
		session.mu.Unlock()
		if fn != nil {
			fn(domain.ICECandidate{
				Candidate:     init.Candidate,
				SDPMid:        init.SDPMid,
				SDPMLineIndex: init.SDPMLineIndex,
			})
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		session.mu.Lock()
		fn := session.onConnState
		session.mu.Unlock()
		if fn != nil {
			fn(mapConnectionState(state))
		}
	})

	return session, nil
}

func (m *MediaSession) CreateOffer() (domain.SessionDescription, error) {
	offer, err := m.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	return domain.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (m *MediaSession) CreateAnswer() (domain.SessionDescription, error) {
	answer, err := m.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	return domain.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (m *MediaSession) SetLocalDescription(desc domain.SessionDescription) error {
	sd, err := toPionDescription(desc)
	if err != nil {
		return err
	}
	if err := m.pc.SetLocalDescription(sd); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

func (m *MediaSession) SetRemoteDescription(desc domain.SessionDescription) error {
	sd, err := toPionDescription(desc)
	if err != nil {
		return err
	}
	if err := m.pc.SetRemoteDescription(sd); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// Rollback discards the pending local description, returning the
// connection to its stable state.
func (m *MediaSession) Rollback() error {
	err := m.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (m *MediaSession) AddICECandidate(c domain.ICECandidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
	if err := m.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

func (m *MediaSession) OnICECandidate(fn func(domain.ICECandidate)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCandidate = fn
}

func (m *MediaSession) OnConnectionStateChange(fn func(domain.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnState = fn
}

// ClearHandlers detaches all callbacks. Called before Close so events
// from the dying connection do not reach released state.
func (m *MediaSession) ClearHandlers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCandidate = nil
	m.onConnState = nil
}

func (m *MediaSession) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if err := m.pc.Close(); err != nil {
		return fmt.Errorf("close peer connection: %w", err)
	}
	return nil
}

func toPionDescription(desc domain.SessionDescription) (webrtc.SessionDescription, error) {
	sdpType := webrtc.NewSDPType(desc.Type)
	if sdpType == webrtc.SDPType(webrtc.Unknown) {
		return webrtc.SessionDescription{}, fmt.Errorf("unknown sdp type %q", desc.Type)
	}
	return webrtc.SessionDescription{Type: sdpType, SDP: desc.SDP}, nil
}

func mapConnectionState(state webrtc.PeerConnectionState) domain.ConnectionState {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return domain.ConnectionStateNew
	case webrtc.PeerConnectionStateConnecting:
		return domain.ConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return domain.ConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return domain.ConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return domain.ConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return domain.ConnectionStateClosed
	default:
		return domain.ConnectionStateNew
	}
}
