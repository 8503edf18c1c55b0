package domain

import "time"

type ConsultationID string

type ConnectionID string

// Role determines politeness during offer collisions: the responder
// yields (rolls back), the initiator's offer wins.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Polite reports whether this side yields when both peers generate an
// offer at the same time.
func (r Role) Polite() bool {
	return r == RoleResponder
}

// RoleFromUserType maps the consultation service's domain roles onto
// negotiation roles. The doctor starts the offer, the patient answers.
func RoleFromUserType(userType string) Role {
	if userType == "DOCTOR" {
		return RoleInitiator
	}
	return RoleResponder
}

type Participant struct {
	ConnectionID ConnectionID `json:"connection_id"`
	Role         Role         `json:"role,omitempty"`
	JoinedAt     time.Time    `json:"joined_at"`
}

// Consultation is the call metadata returned by the consultation service.
type Consultation struct {
	ID          ConsultationID `json:"id"`
	DoctorID    string         `json:"doctor_id"`
	PatientID   string         `json:"patient_id"`
	Status      string         `json:"status"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	Credits     int            `json:"credits"`
}

// CallInfo is the result of starting a call: which room to join and
// which negotiation role this side was assigned.
type CallInfo struct {
	RoomID string `json:"room_id"`
	Role   Role   `json:"role"`
}

type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}
