package http

import (
	"context"
	"errors"
	"net/http"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/internal/core/services"
	"telecall/internal/infrastructure/middleware"
	"telecall/pkg/validation"

	"github.com/gin-gonic/gin"
)

// ConsultationEnder is the slice of the relay the REST surface needs:
// telling a live room the consultation is over.
type ConsultationEnder interface {
	EndConsultation(ctx context.Context, id domain.ConsultationID)
}

// ConsultationHandler exposes the call lifecycle REST surface. Clients
// check status, start the call (getting their room and role), and the
// doctor ends it.
type ConsultationHandler struct {
	repo       ports.ConsultationRepository
	auth       services.AuthService
	relay      ConsultationEnder
	iceServers []domain.ICEServer
}

func NewConsultationHandler(
	repo ports.ConsultationRepository,
	auth services.AuthService,
	relay ConsultationEnder,
	iceServers []domain.ICEServer,
) *ConsultationHandler {
	return &ConsultationHandler{
		repo:       repo,
		auth:       auth,
		relay:      relay,
		iceServers: iceServers,
	}
}

func (h *ConsultationHandler) SetupRoutes(router *gin.Engine, authMW gin.HandlerFunc) {
	video := router.Group("/video", authMW)
	{
		video.POST("/consultations", h.Create)
		video.GET("/status/:id", h.Status)
		video.POST("/start/:id", h.Start)
		video.POST("/end/:id", h.End)
	}
}

type CreateConsultationRequest struct {
	ID        string `json:"id" binding:"required,max=100"`
	DoctorID  string `json:"doctor_id" binding:"required,max=100"`
	PatientID string `json:"patient_id" binding:"required,max=100"`
	Credits   int    `json:"credits"`
}

// Create registers a consultation record. In production the booking
// platform provisions these; kept on the relay so integration setups
// can run without it.
func (h *ConsultationHandler) Create(c *gin.Context) {
	var req CreateConsultationRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	if err := validation.ValidateConsultationID(req.ID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateUserID(req.DoctorID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateUserID(req.PatientID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Credits < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credits must not be negative"})
		return
	}

	id := domain.ConsultationID(req.ID)
	if _, err := h.repo.Get(c.Request.Context(), id); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "consultation already exists"})
		return
	} else if !errors.Is(err, domain.ErrConsultationNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	consultation := &domain.Consultation{
		ID:        id,
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Status:    "scheduled",
		Credits:   req.Credits,
	}
	if err := h.repo.Save(c.Request.Context(), consultation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, consultation)
}

// authorize loads the consultation and verifies the caller is one of
// its parties.
func (h *ConsultationHandler) authorize(c *gin.Context) (*domain.Consultation, *services.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, nil, false
	}

	id := domain.ConsultationID(c.Param("id"))
	consultation, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrConsultationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "consultation not found"})
			return nil, nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil, false
	}

	if err := h.auth.CheckConsultationAccess(claims, consultation); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this consultation"})
		return nil, nil, false
	}

	return consultation, claims, true
}

func (h *ConsultationHandler) Status(c *gin.Context) {
	consultation, _, ok := h.authorize(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, consultation)
}

func (h *ConsultationHandler) Start(c *gin.Context) {
	consultation, claims, ok := h.authorize(c)
	if !ok {
		return
	}

	switch consultation.Status {
	case "scheduled", "active":
	case "completed":
		c.JSON(http.StatusConflict, gin.H{"error": "consultation already completed"})
		return
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "consultation cannot be started"})
		return
	}

	if consultation.Credits <= 0 {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
		return
	}

	if consultation.Status != "active" {
		if err := h.repo.SetStatus(c.Request.Context(), consultation.ID, "active"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":     string(consultation.ID),
		"role":        claims.Role(),
		"ice_servers": h.iceServers,
	})
}

func (h *ConsultationHandler) End(c *gin.Context) {
	consultation, claims, ok := h.authorize(c)
	if !ok {
		return
	}

	// Only the doctor's end closes the consultation for both sides.
	if claims.Role() != domain.RoleInitiator {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the doctor can end the consultation"})
		return
	}

	if err := h.repo.SetStatus(c.Request.Context(), consultation.ID, "completed"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.relay.EndConsultation(c.Request.Context(), consultation.ID)
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}
