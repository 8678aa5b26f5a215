package routes

import (
	"errors"
	"net/http"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/auth"
	"sensor-dashboard/internal/storage"
)

// HTTPError represents an error with an associated HTTP status code and user message
type HTTPError struct {
	Err        error    // The underlying error
	StatusCode int      // HTTP status code
	Message    string   // User-friendly message
	StopCodes  []string // Optional stop codes for client-side handling
	Internal   bool     // Whether this is an internal error (hide details from user)
}

// ErrorInfo contains error metadata for user-facing errors
type ErrorInfo struct {
	Message   string   // User-friendly message
	StopCodes []string // Optional stop codes for client-side application
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, err error, message string, stopCodes ...string) *HTTPError {
	return &HTTPError{
		Err:        err,
		StatusCode: statusCode,
		Message:    message,
		StopCodes:  stopCodes,
		Internal:   statusCode >= 500,
	}
}

// Routes-specific errors (that don't conflict with other packages)
var (
	// Authentication errors
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyRequests    = errors.New("too many requests")

	// Authorization errors
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// Validation errors
	ErrInvalidRequest   = errors.New("invalid request")
	ErrMissingParameter = errors.New("missing required parameter")
	ErrInvalidParameter = errors.New("invalid parameter")

	// Internal errors
	ErrInternalServer = errors.New("internal server error")
)

// errorStatusMap maps errors to HTTP status codes
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrInvalidRequest:         http.StatusBadRequest,
	ErrMissingParameter:       http.StatusBadRequest,
	ErrInvalidParameter:       http.StatusBadRequest,
	access.ErrMissingEmail:    http.StatusBadRequest,
	access.ErrInvalidEmail:    http.StatusBadRequest,
	access.ErrMissingPassword: http.StatusBadRequest,
	access.ErrWeakPassword:    http.StatusBadRequest,
	storage.ErrInvalidPatch:   http.StatusBadRequest,

	// 401 Unauthorized
	ErrUnauthorized:       http.StatusUnauthorized,
	ErrInvalidCredentials: http.StatusUnauthorized,
	auth.ErrNonValidToken: http.StatusUnauthorized,
	auth.ErrInvalidNonce:  http.StatusUnauthorized,

	// 403 Forbidden
	ErrInsufficientPermissions: http.StatusForbidden,

	// 404 Not Found
	storage.ErrNotFound: http.StatusNotFound,

	// 409 Conflict
	storage.ErrEmailInUse: http.StatusConflict,

	// 429 Too Many Requests
	ErrTooManyRequests: http.StatusTooManyRequests,

	// 500 Internal Server Error
	ErrInternalServer:        http.StatusInternalServerError,
	storage.ErrUnknownColumn: http.StatusInternalServerError,
	storage.ErrNoStorage:     http.StatusInternalServerError,
}

// errorInfoMap maps errors to user-friendly messages and optional stop codes
var errorInfoMap = map[error]ErrorInfo{
	// Authentication
	ErrUnauthorized: {
		Message:   "Authentication required",
		StopCodes: []string{"AUTH_REQUIRED"},
	},
	ErrInvalidCredentials: {
		Message:   "Invalid email or password",
		StopCodes: []string{"auth/invalid-credential"},
	},
	ErrTooManyRequests: {
		Message:   "Too many attempts. Please wait a moment and try again.",
		StopCodes: []string{"auth/too-many-requests"},
	},
	auth.ErrNonValidToken: {
		Message:   "Invalid or expired authentication token",
		StopCodes: []string{"AUTH_INVALID_TOKEN"},
	},
	auth.ErrInvalidNonce: {
		Message:   "Session has ended. Please log in again.",
		StopCodes: []string{"AUTH_INVALID_NONCE"},
	},

	// Signup
	access.ErrMissingEmail: {
		Message:   "Email is required",
		StopCodes: []string{"auth/missing-email"},
	},
	access.ErrInvalidEmail: {
		Message:   "Invalid email format",
		StopCodes: []string{"auth/invalid-email"},
	},
	access.ErrMissingPassword: {
		Message:   "Password is required",
		StopCodes: []string{"auth/missing-password"},
	},
	access.ErrWeakPassword: {
		Message:   "Password should be at least 6 characters",
		StopCodes: []string{"auth/weak-password"},
	},
	storage.ErrEmailInUse: {
		Message:   "Email is already in use",
		StopCodes: []string{"auth/email-already-in-use"},
	},

	// Authorization
	ErrInsufficientPermissions: {
		Message:   "You don't have permission to perform this action",
		StopCodes: []string{"INSUFFICIENT_PERMISSIONS"},
	},

	// Sensors
	storage.ErrNotFound: {
		Message:   "Sensor not found",
		StopCodes: []string{"NOT_FOUND"},
	},

	// Validation
	ErrInvalidRequest: {
		Message:   "Invalid request format",
		StopCodes: []string{"INVALID_REQUEST"},
	},
	ErrMissingParameter: {
		Message:   "Required parameter is missing",
		StopCodes: []string{"MISSING_PARAMETER"},
	},
	ErrInvalidParameter: {
		Message:   "Invalid parameter value",
		StopCodes: []string{"INVALID_PARAMETER"},
	},
	storage.ErrInvalidPatch: {
		Message:   "Invalid update",
		StopCodes: []string{"INVALID_PARAMETER"},
	},

	// Internal (no stop codes for internal errors)
	ErrInternalServer: {
		Message: "An internal error occurred",
	},
	storage.ErrNoStorage: {
		Message: "Storage service is not available",
	},
}

// lookupError finds the most specific known error in the chain of err.
func lookupError(err error) (error, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, ok := errorStatusMap[e]; ok {
			return e, true
		}
	}
	// Joined errors do not unwrap to a single error.
	for known := range errorStatusMap {
		if errors.Is(err, known) {
			return known, true
		}
	}
	return nil, false
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	// Check if it's already an HTTPError
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	if known, ok := lookupError(err); ok {
		return errorStatusMap[known]
	}

	// Default to 500 Internal Server Error
	return http.StatusInternalServerError
}

// GetErrorInfo returns error information including message and stop codes
func GetErrorInfo(err error) ErrorInfo {
	// Check if it's an HTTPError with custom info
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ErrorInfo{
			Message:   httpErr.Message,
			StopCodes: httpErr.StopCodes,
		}
	}

	if known, ok := lookupError(err); ok {
		if info, ok := errorInfoMap[known]; ok {
			return info
		}
	}

	// For unknown errors, return a generic message for 5xx, specific for others
	status := GetErrorStatus(err)
	if status >= 500 {
		return ErrorInfo{Message: "An internal error occurred"}
	}
	return ErrorInfo{Message: err.Error()}
}

// GetErrorMessage returns a user-friendly message for an error
func GetErrorMessage(err error) string {
	return GetErrorInfo(err).Message
}

// GetErrorStopCodes returns stop codes for an error
func GetErrorStopCodes(err error) []string {
	return GetErrorInfo(err).StopCodes
}
