package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/internal/core/services"
	"telecall/internal/infrastructure/middleware"
	"telecall/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEnder struct {
	ended []domain.ConsultationID
}

func (s *stubEnder) EndConsultation(ctx context.Context, id domain.ConsultationID) {
	s.ended = append(s.ended, id)
}

type handlerFixture struct {
	router *gin.Engine
	repo   ports.ConsultationRepository
	auth   services.AuthService
	ender  *stubEnder
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewMemoryConsultationRepository()
	auth := services.NewAuthService("test-secret", time.Hour)
	ender := &stubEnder{}

	handler := NewConsultationHandler(repo, auth, ender, []domain.ICEServer{
		{URLs: []string{"stun:stun.example.org:3478"}},
	})

	router := gin.New()
	handler.SetupRoutes(router, middleware.AuthMiddleware(auth))

	require.NoError(t, repo.Save(context.Background(), &domain.Consultation{
		ID:        "consult-1",
		DoctorID:  "doctor-1",
		PatientID: "patient-1",
		Status:    "scheduled",
		Credits:   3,
	}))

	return &handlerFixture{router: router, repo: repo, auth: auth, ender: ender}
}

func (f *handlerFixture) request(t *testing.T, method, path, userID, userType string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, bytes.NewReader(nil))
	require.NoError(t, err)
	if userID != "" {
		token, err := f.auth.GenerateToken(userID, userType)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestConsultationHandler_StatusReturnsConsultation(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.request(t, http.MethodGet, "/video/status/consult-1", "doctor-1", "DOCTOR")
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Consultation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, domain.ConsultationID("consult-1"), got.ID)
	assert.Equal(t, "scheduled", got.Status)
}

func TestConsultationHandler_RequiresToken(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.request(t, http.MethodGet, "/video/status/consult-1", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConsultationHandler_RejectsStrangers(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.request(t, http.MethodGet, "/video/status/consult-1", "stranger", "PATIENT")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestConsultationHandler_UnknownConsultation(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.request(t, http.MethodGet, "/video/status/nope", "doctor-1", "DOCTOR")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConsultationHandler_StartAssignsRoles(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.request(t, http.MethodPost, "/video/start/consult-1", "doctor-1", "DOCTOR")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RoomID     string             `json:"room_id"`
		Role       domain.Role        `json:"role"`
		ICEServers []domain.ICEServer `json:"ice_servers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "consult-1", resp.RoomID)
	assert.Equal(t, domain.RoleInitiator, resp.Role)
	require.Len(t, resp.ICEServers, 1)

	// The patient joins the now-active consultation as responder.
	w = f.request(t, http.MethodPost, "/video/start/consult-1", "patient-1", "PATIENT")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.RoleResponder, resp.Role)

	stored, err := f.repo.Get(context.Background(), "consult-1")
	require.NoError(t, err)
	assert.Equal(t, "active", stored.Status)
}

func TestConsultationHandler_StartWithoutCredits(t *testing.T) {
	f := newHandlerFixture(t)
	require.NoError(t, f.repo.Save(context.Background(), &domain.Consultation{
		ID:        "consult-2",
		DoctorID:  "doctor-1",
		PatientID: "patient-1",
		Status:    "scheduled",
		Credits:   0,
	}))

	w := f.request(t, http.MethodPost, "/video/start/consult-2", "patient-1", "PATIENT")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestConsultationHandler_StartCompletedConflicts(t *testing.T) {
	f := newHandlerFixture(t)
	require.NoError(t, f.repo.SetStatus(context.Background(), "consult-1", "completed"))

	w := f.request(t, http.MethodPost, "/video/start/consult-1", "doctor-1", "DOCTOR")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConsultationHandler_EndIsDoctorOnly(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.request(t, http.MethodPost, "/video/end/consult-1", "patient-1", "PATIENT")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.ender.ended)

	w = f.request(t, http.MethodPost, "/video/end/consult-1", "doctor-1", "DOCTOR")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.ender.ended, 1)
	assert.Equal(t, domain.ConsultationID("consult-1"), f.ender.ended[0])

	stored, err := f.repo.Get(context.Background(), "consult-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", stored.Status)
}

func (f *handlerFixture) requestJSON(t *testing.T, method, path, userID, userType string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(method, path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := f.auth.GenerateToken(userID, userType)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestConsultationHandler_CreateSeedsConsultation(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.requestJSON(t, http.MethodPost, "/video/consultations", "doctor-2", "DOCTOR", CreateConsultationRequest{
		ID:        "consult-9",
		DoctorID:  "doctor-2",
		PatientID: "patient-2",
		Credits:   5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	stored, err := f.repo.Get(context.Background(), "consult-9")
	require.NoError(t, err)
	assert.Equal(t, "scheduled", stored.Status)
	assert.Equal(t, 5, stored.Credits)

	// The seeded record carries the parties, so they can start the call.
	w = f.request(t, http.MethodPost, "/video/start/consult-9", "patient-2", "PATIENT")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConsultationHandler_CreateRejectsDuplicate(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.requestJSON(t, http.MethodPost, "/video/consultations", "doctor-1", "DOCTOR", CreateConsultationRequest{
		ID:        "consult-1",
		DoctorID:  "doctor-1",
		PatientID: "patient-1",
		Credits:   3,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConsultationHandler_CreateValidatesInput(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.requestJSON(t, http.MethodPost, "/video/consultations", "doctor-1", "DOCTOR", CreateConsultationRequest{
		ID:        "bad id with spaces",
		DoctorID:  "doctor-1",
		PatientID: "patient-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.requestJSON(t, http.MethodPost, "/video/consultations", "doctor-1", "DOCTOR", CreateConsultationRequest{
		ID:        "consult-10",
		DoctorID:  "doctor-1",
		PatientID: "patient-1",
		Credits:   -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
