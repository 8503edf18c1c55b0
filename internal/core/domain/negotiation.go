package domain

// SignalingPhase is the negotiation state machine's stage in the
// offer/answer cycle. Transitions happen only inside the negotiation
// service; nothing else may set it.
type SignalingPhase string

const (
	PhaseStable          SignalingPhase = "stable"
	PhaseHaveLocalOffer  SignalingPhase = "have_local_offer"
	PhaseHaveRemoteOffer SignalingPhase = "have_remote_offer"
)

// ConnectionState reflects the underlying media transport.
type ConnectionState string

const (
	ConnectionStateNew          ConnectionState = "new"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateFailed       ConnectionState = "failed"
	ConnectionStateClosed       ConnectionState = "closed"
)

// Connected reports whether a direct media path is up.
func (s ConnectionState) Connected() bool {
	return s == ConnectionStateConnected
}
