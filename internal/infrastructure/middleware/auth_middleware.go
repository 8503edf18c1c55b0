package middleware

import (
	"strings"

	"telecall/internal/core/services"
	"telecall/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and stores the claims on
// the request context. Websocket clients cannot set headers from the
// browser, so a token query parameter is accepted as a fallback.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			abortUnauthorized(c, errors.NewUnauthorizedError("authorization required"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, errors.NewUnauthorizedError(err.Error()))
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_type", claims.UserType)
		c.Set("claims", claims)
		c.Next()
	}
}

// abortUnauthorized writes the classified error directly; the auth gate
// has to respond even on routes mounted without the error middleware.
func abortUnauthorized(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// ClaimsFromContext retrieves what AuthMiddleware stored.
func ClaimsFromContext(c *gin.Context) (*services.Claims, bool) {
	val, exists := c.Get("claims")
	if !exists {
		return nil, false
	}
	claims, ok := val.(*services.Claims)
	return claims, ok
}
