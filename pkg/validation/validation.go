package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ConsultationIDRegex validates consultation ID format
	ConsultationIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// UserIDRegex validates user ID format
	UserIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// MaxChatTextLength bounds a single chat message.
const MaxChatTextLength = 2000

// ValidateConsultationID validates consultation ID
func ValidateConsultationID(id string) error {
	if id == "" {
		return fmt.Errorf("consultation ID is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("consultation ID is too long (max 100 characters)")
	}
	if !ConsultationIDRegex.MatchString(id) {
		return fmt.Errorf("invalid consultation ID format")
	}
	return nil
}

// ValidateUserID validates user ID
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("user ID is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("user ID is too long (max 100 characters)")
	}
	if !UserIDRegex.MatchString(id) {
		return fmt.Errorf("invalid user ID format")
	}
	return nil
}

// ValidateUserType validates the consultation service's user vocabulary
func ValidateUserType(userType string) error {
	switch userType {
	case "DOCTOR", "PATIENT":
		return nil
	default:
		return fmt.Errorf("invalid user type (must be DOCTOR or PATIENT)")
	}
}

// ValidateChatText validates chat message text
func ValidateChatText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("chat text is required")
	}
	if utf8.RuneCountInString(text) > MaxChatTextLength {
		return fmt.Errorf("chat text is too long (max %d characters)", MaxChatTextLength)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("chat text contains invalid characters")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
