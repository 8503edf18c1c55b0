package http

import (
	"net/http"
	"time"

	"telecall/internal/core/services"
	"telecall/pkg/errors"
	"telecall/pkg/validation"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues the tokens the consultation platform would mint in
// production. Kept on the relay so integration setups can run without
// the upstream identity service.
type AuthHandler struct {
	authService services.AuthService
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	router.POST("/auth/token", h.IssueToken)
}

type TokenRequest struct {
	UserID   string `json:"user_id" binding:"required,max=100"`
	UserType string `json:"user_type" binding:"required"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	if err := validation.ValidateUserID(req.UserID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateUserType(req.UserType); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	token, err := h.authService.GenerateToken(req.UserID, req.UserType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"user_id":      req.UserID,
		"user_type":    req.UserType,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}
