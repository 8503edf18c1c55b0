package services

import (
	"errors"
	"time"

	"telecall/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNotParty     = errors.New("user is not a party to this consultation")
)

// AuthService issues and validates the tokens participants present to
// the relay and the consultation REST surface.
type AuthService interface {
	GenerateToken(userID, userType string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	CheckConsultationAccess(claims *Claims, c *domain.Consultation) error
}

// Claims carries who the user is and which side of the consultation
// they sit on. UserType is the consultation service's vocabulary
// (DOCTOR or PATIENT); the negotiation role is derived from it.
type Claims struct {
	UserID   string `json:"user_id"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// Role maps the token's user type onto a negotiation role.
func (c *Claims) Role() domain.Role {
	return domain.RoleFromUserType(c.UserType)
}

type authService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
}

func NewAuthService(jwtSecret string, accessTokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
	}
}

func (s *authService) GenerateToken(userID, userType string) (string, error) {
	claims := &Claims{
		UserID:   userID,
		UserType: userType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// CheckConsultationAccess verifies the token's subject is one of the
// consultation's two parties.
func (s *authService) CheckConsultationAccess(claims *Claims, c *domain.Consultation) error {
	if claims.UserID == c.DoctorID || claims.UserID == c.PatientID {
		return nil
	}
	return ErrNotParty
}
