package services

import (
	"testing"
	"time"

	"telecall/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_TokenRoundTrip(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)

	token, err := auth.GenerateToken("doctor-1", "DOCTOR")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "doctor-1", claims.UserID)
	assert.Equal(t, "DOCTOR", claims.UserType)
	assert.Equal(t, domain.RoleInitiator, claims.Role())
}

func TestAuthService_PatientIsResponder(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)

	token, err := auth.GenerateToken("patient-1", "PATIENT")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleResponder, claims.Role())
}

func TestAuthService_RejectsExpiredToken(t *testing.T) {
	auth := NewAuthService("test-secret", -time.Minute)

	token, err := auth.GenerateToken("doctor-1", "DOCTOR")
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_RejectsForeignSecret(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)
	other := NewAuthService("other-secret", time.Hour)

	token, err := other.GenerateToken("doctor-1", "DOCTOR")
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ConsultationAccess(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)
	consultation := &domain.Consultation{ID: "consult-1", DoctorID: "doctor-1", PatientID: "patient-1"}

	assert.NoError(t, auth.CheckConsultationAccess(&Claims{UserID: "doctor-1"}, consultation))
	assert.NoError(t, auth.CheckConsultationAccess(&Claims{UserID: "patient-1"}, consultation))
	assert.ErrorIs(t, auth.CheckConsultationAccess(&Claims{UserID: "stranger"}, consultation), ErrNotParty)
}
