package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"
	"telecall/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeConsultAPI struct {
	role       domain.Role
	statusErr  error
	startErr   error
	endErr     error
	endCalls   int
	startCalls int
}

func (f *fakeConsultAPI) Status(ctx context.Context, id domain.ConsultationID) (*domain.Consultation, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &domain.Consultation{ID: id, Status: "scheduled"}, nil
}

func (f *fakeConsultAPI) Start(ctx context.Context, id domain.ConsultationID) (*domain.CallInfo, error) {
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &domain.CallInfo{RoomID: "room-" + string(id), Role: f.role}, nil
}

func (f *fakeConsultAPI) End(ctx context.Context, id domain.ConsultationID) error {
	f.endCalls++
	return f.endErr
}

type fakeMediaFactory struct {
	media *fakeMedia
	err   error
}

func (f *fakeMediaFactory) NewMediaSession(iceServers []domain.ICEServer) (ports.MediaSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.media, nil
}

func newTestCall(t *testing.T, role domain.Role, api *fakeConsultAPI, media *fakeMedia, ch *fakeChannel) *CallService {
	t.Helper()
	if api == nil {
		api = &fakeConsultAPI{role: role}
	}
	logger := zaptest.NewLogger(t).Sugar()
	return NewCallService("consult-1", api, &fakeMediaFactory{media: media}, ch, CallConfig{
		ParticipantID: "user-1",
		ICEServers:    []domain.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}},
		ConnectRetry:  retry.Config{MaxAttempts: 1},
	}, ControlObserver{}, logger)
}

// Scenario: the initiator joins alone, sees room_info with one
// participant and stays quiet; once the peer joins, exactly one offer
// goes out, and the incoming answer settles both flags.
func TestCall_CleanOfferAnswerRound(t *testing.T) {
	media := &fakeMedia{}
	ch := newFakeChannel()
	call := newTestCall(t, domain.RoleInitiator, nil, media, ch)

	require.NoError(t, call.Start(context.Background()))
	assert.Equal(t, domain.RoleInitiator, call.Role())
	assert.Len(t, ch.sentOfType(domain.SignalTypeJoin), 1)
	assert.Len(t, ch.sentOfType(domain.SignalTypeChatJoin), 1)

	ch.deliver(t, domain.SignalTypeRoomInfo, "consult-1", "", domain.RoomInfoPayload{ParticipantCount: 1})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, ch.sentOfType(domain.SignalTypeOffer))

	ch.deliver(t, domain.SignalTypeJoin, "consult-1", "conn-2", domain.JoinPayload{ParticipantID: "user-2"})
	ch.deliver(t, domain.SignalTypeRoomInfo, "consult-1", "", domain.RoomInfoPayload{ParticipantCount: 2})

	assert.Eventually(t, func() bool {
		return len(ch.sentOfType(domain.SignalTypeOffer)) == 1
	}, time.Second, 10*time.Millisecond)
	// The redundant room-info trigger must not add a second offer.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, ch.sentOfType(domain.SignalTypeOffer), 1)

	ch.deliver(t, domain.SignalTypeAnswer, "consult-1", "conn-2", domain.AnswerPayload{
		SDP: domain.SessionDescription{Type: "answer", SDP: "v=0 answer"},
	})
	assert.Eventually(t, func() bool {
		return call.Negotiator().Phase() == domain.PhaseStable
	}, time.Second, 10*time.Millisecond)

	call.Cleanup()
}

// Scenario: the responder receives three candidates before any offer;
// once the offer lands, all three apply in their original order.
func TestCall_CandidatesBufferedBeforeOffer(t *testing.T) {
	media := &fakeMedia{}
	ch := newFakeChannel()
	call := newTestCall(t, domain.RoleResponder, nil, media, ch)

	require.NoError(t, call.Start(context.Background()))

	for _, name := range []string{"c-0", "c-1", "c-2"} {
		ch.deliver(t, domain.SignalTypeICECandidate, "consult-1", "conn-2", domain.ICECandidatePayload{
			Candidate: domain.ICECandidate{Candidate: name},
		})
	}
	assert.Eventually(t, func() bool {
		return call.Negotiator().QueuedCandidates() == 3
	}, time.Second, 10*time.Millisecond)

	ch.deliver(t, domain.SignalTypeOffer, "consult-1", "conn-2", domain.OfferPayload{
		SDP: domain.SessionDescription{Type: "offer", SDP: "v=0 remote"},
	})

	assert.Eventually(t, func() bool {
		applied := media.appliedCandidates()
		return len(applied) == 3 &&
			applied[0].Candidate == "c-0" &&
			applied[1].Candidate == "c-1" &&
			applied[2].Candidate == "c-2"
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, ch.sentOfType(domain.SignalTypeAnswer), 1)

	call.Cleanup()
}

func TestCall_RecordingErrorScenario(t *testing.T) {
	media := &fakeMedia{}
	ch := newFakeChannel()
	call := newTestCall(t, domain.RoleInitiator, nil, media, ch)

	require.NoError(t, call.Start(context.Background()))
	require.NoError(t, call.Control().StartRecording())

	ch.deliver(t, domain.SignalTypeRecordingError, "consult-1", "", domain.RecordingErrorPayload{Reason: "quota-exceeded"})
	time.Sleep(50 * time.Millisecond)

	assert.False(t, call.Control().RecordingActive())
	call.Cleanup()
}

func TestCall_StartupFailuresClassified(t *testing.T) {
	tests := []struct {
		name     string
		api      *fakeConsultAPI
		media    *fakeMedia
		mediaErr error
		connect  error
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "insufficient credits",
			api:      &fakeConsultAPI{role: domain.RoleInitiator, startErr: apperrors.NewInsufficientCreditsError()},
			media:    &fakeMedia{},
			wantCode: apperrors.ErrCodeInsufficientCredits,
		},
		{
			name:     "session expired",
			api:      &fakeConsultAPI{role: domain.RoleInitiator, statusErr: apperrors.NewSessionExpiredError()},
			media:    &fakeMedia{},
			wantCode: apperrors.ErrCodeSessionExpired,
		},
		{
			name:     "media denied",
			api:      &fakeConsultAPI{role: domain.RoleInitiator},
			mediaErr: errors.New("permission denied"),
			wantCode: apperrors.ErrCodeMediaAccess,
		},
		{
			name:     "channel unreachable",
			api:      &fakeConsultAPI{role: domain.RoleInitiator},
			media:    &fakeMedia{},
			connect:  errors.New("dial refused"),
			wantCode: apperrors.ErrCodeChannel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newFakeChannel()
			ch.failConnect = tt.connect

			logger := zaptest.NewLogger(t).Sugar()
			call := NewCallService("consult-1", tt.api, &fakeMediaFactory{media: tt.media, err: tt.mediaErr}, ch, CallConfig{
				ParticipantID: "user-1",
				ConnectRetry:  retry.Config{MaxAttempts: 1},
			}, ControlObserver{}, logger)

			err := call.Start(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestCall_CleanupIdempotent(t *testing.T) {
	media := &fakeMedia{}
	ch := newFakeChannel()
	call := newTestCall(t, domain.RoleInitiator, nil, media, ch)

	require.NoError(t, call.Start(context.Background()))

	call.Cleanup()
	call.Cleanup()

	assert.Equal(t, 1, media.closes)
	assert.True(t, media.clearedBefore, "handlers must be cleared before close")
	assert.Equal(t, domain.ConnectionStateClosed, call.ConnectionState())
}

func TestCall_EndCallNotifiesInitiatorOnly(t *testing.T) {
	t.Run("initiator", func(t *testing.T) {
		api := &fakeConsultAPI{role: domain.RoleInitiator}
		media := &fakeMedia{}
		ch := newFakeChannel()
		call := newTestCall(t, domain.RoleInitiator, api, media, ch)

		require.NoError(t, call.Start(context.Background()))
		call.EndCall(context.Background())

		assert.Equal(t, 1, api.endCalls)
	})

	t.Run("responder", func(t *testing.T) {
		api := &fakeConsultAPI{role: domain.RoleResponder}
		media := &fakeMedia{}
		ch := newFakeChannel()
		call := newTestCall(t, domain.RoleResponder, api, media, ch)

		require.NoError(t, call.Start(context.Background()))
		call.EndCall(context.Background())

		assert.Zero(t, api.endCalls)
	})
}

func TestCall_RemoteEndedTriggersCleanup(t *testing.T) {
	media := &fakeMedia{}
	ch := newFakeChannel()
	call := newTestCall(t, domain.RoleResponder, nil, media, ch)

	require.NoError(t, call.Start(context.Background()))

	ch.deliver(t, domain.SignalTypeConsultationEnded, "consult-1", "", nil)

	assert.Eventually(t, func() bool {
		return media.closes == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCall_DropsMessageForOtherConsultation(t *testing.T) {
	media := &fakeMedia{}
	ch := newFakeChannel()
	call := newTestCall(t, domain.RoleResponder, nil, media, ch)

	require.NoError(t, call.Start(context.Background()))

	ch.deliver(t, domain.SignalTypeOffer, "other-consult", "conn-9", domain.OfferPayload{
		SDP: domain.SessionDescription{Type: "offer", SDP: "v=0 wrong room"},
	})
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, media.remoteCount())
	call.Cleanup()
}
