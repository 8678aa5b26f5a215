package access

import (
	"errors"
	"testing"
)

func TestValidPassword(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"", ErrMissingPassword},
		{"12345", ErrWeakPassword},
		{"123456", nil},
		{"กขคงจฉ", nil}, // six runes, more bytes
	}
	for _, tt := range tests {
		if err := ValidPassword(tt.password); !errors.Is(err, tt.want) {
			t.Errorf("ValidPassword(%q) = %v, want %v", tt.password, err, tt.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  error
	}{
		{"", ErrMissingEmail},
		{"@example.com", ErrInvalidEmail},
		{"user@", ErrInvalidEmail},
		{"user.example.com", ErrInvalidEmail},
		{"user@example.com", nil},
	}
	for _, tt := range tests {
		if err := ValidEmail(tt.email); !errors.Is(err, tt.want) {
			t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, err, tt.want)
		}
	}
}
