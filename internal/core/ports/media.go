package ports

import (
	"telecall/internal/core/domain"
)

// MediaSession abstracts the local peer connection and captured media.
// One session is exclusively owned by one call attempt and never reused.
type MediaSession interface {
	CreateOffer() (domain.SessionDescription, error)
	CreateAnswer() (domain.SessionDescription, error)
	SetLocalDescription(desc domain.SessionDescription) error
	SetRemoteDescription(desc domain.SessionDescription) error
	// Rollback discards a pending local offer. Best-effort: callers
	// tolerate failure and continue.
	Rollback() error
	AddICECandidate(candidate domain.ICECandidate) error

	// OnICECandidate registers the trickle callback for locally
	// gathered candidates. A nil candidate marks end of gathering and
	// is not delivered.
	OnICECandidate(fn func(domain.ICECandidate))
	OnConnectionStateChange(fn func(domain.ConnectionState))

	// ClearHandlers detaches all callbacks. Must be called before
	// Close so late events cannot fire into a torn-down call.
	ClearHandlers()
	Close() error
}

// MediaSessionFactory acquires local media and builds a session against
// the configured STUN/TURN servers.
type MediaSessionFactory interface {
	NewMediaSession(iceServers []domain.ICEServer) (MediaSession, error)
}
