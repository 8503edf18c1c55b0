package domain

import (
	"encoding/json"
	"time"
)

// SignalType discriminates messages on the per-consultation channel.
type SignalType string

const (
	SignalTypeJoin              SignalType = "join"
	SignalTypeLeave             SignalType = "leave"
	SignalTypeOffer             SignalType = "offer"
	SignalTypeAnswer            SignalType = "answer"
	SignalTypeICECandidate      SignalType = "ice_candidate"
	SignalTypeRoomInfo          SignalType = "room_info"
	SignalTypeChatJoin          SignalType = "chat_join"
	SignalTypeChatLeave         SignalType = "chat_leave"
	SignalTypeChatMessage       SignalType = "chat_message"
	SignalTypeChatHistory       SignalType = "chat_history"
	SignalTypeRecordingStart    SignalType = "recording_start"
	SignalTypeRecordingStop     SignalType = "recording_stop"
	SignalTypeRecordingStarted  SignalType = "recording_started"
	SignalTypeRecordingStopped  SignalType = "recording_stopped"
	SignalTypeRecordingError    SignalType = "recording_error"
	SignalTypeConsultationEnded SignalType = "consultation_ended"
	SignalTypeError             SignalType = "error"
)

// SignalMessage is the wire envelope. Every message is scoped to one
// consultation; the channel preserves send order per sender within a
// room but makes no guarantee across rooms.
type SignalMessage struct {
	Type           SignalType      `json:"type"`
	ConsultationID ConsultationID  `json:"consultation_id"`
	From           ConnectionID    `json:"from,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// SessionDescription carries one side's proposed media capabilities.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is one possible network path, trickled incrementally.
// Mirrors the fields of webrtc.ICECandidateInit.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

type JoinPayload struct {
	ParticipantID string `json:"participant_id"`
}

type OfferPayload struct {
	SDP SessionDescription `json:"sdp"`
}

type AnswerPayload struct {
	SDP SessionDescription `json:"sdp"`
}

type ICECandidatePayload struct {
	Candidate ICECandidate `json:"candidate"`
}

type RoomInfoPayload struct {
	ParticipantCount int `json:"participant_count"`
}

type ChatJoinPayload struct {
	ParticipantID string `json:"participant_id"`
	Role          Role   `json:"role"`
}

type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderRole Role      `json:"sender_role"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

type ChatHistoryPayload struct {
	Messages []ChatMessage `json:"messages"`
}

type RecordingErrorPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewSignalMessage marshals payload into a ready-to-send envelope.
func NewSignalMessage(t SignalType, id ConsultationID, payload interface{}) (SignalMessage, error) {
	msg := SignalMessage{Type: t, ConsultationID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return SignalMessage{}, err
		}
		msg.Payload = raw
	}
	return msg, nil
}
