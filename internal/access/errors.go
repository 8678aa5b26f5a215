package access

import "errors"

var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrUnknownCapability = errors.New("unknown capability")
	ErrCapabilityMissing = errors.New("capability missing from permission table")
	ErrNotMonotonic      = errors.New("permission table is not monotonic")

	ErrMissingEmail    = errors.New("email is required")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrWeakPassword    = errors.New("password is too short")
	ErrMissingPassword = errors.New("password is required")
)
