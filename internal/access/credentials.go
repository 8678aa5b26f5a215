package access

import (
	"strings"
	"unicode/utf8"
)

// Minimum password length accepted at signup.
const MinPasswordLength = 6

func ValidEmail(email string) error {
	if email == "" {
		return ErrMissingEmail
	}

	// Must contain "@" and not be the first or last character
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return ErrInvalidEmail
	}

	return nil
}

// ValidPassword is checked before anything is sent to storage.
func ValidPassword(password string) error {
	if password == "" {
		return ErrMissingPassword
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
