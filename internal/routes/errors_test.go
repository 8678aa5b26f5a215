package routes

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/auth"
	"sensor-dashboard/internal/storage"
)

func TestGetErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("sensor AA: %w", storage.ErrNotFound), http.StatusNotFound},
		{storage.ErrEmailInUse, http.StatusConflict},
		{access.ErrWeakPassword, http.StatusBadRequest},
		{fmt.Errorf("%w: signature is invalid", auth.ErrNonValidToken), http.StatusUnauthorized},
		{ErrInsufficientPermissions, http.StatusForbidden},
		{errors.Join(ErrInvalidRequest, errors.New("EOF")), http.StatusBadRequest},
		{NewHTTPError(http.StatusTeapot, nil, "teapot"), http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := GetErrorStatus(tt.err); got != tt.want {
			t.Errorf("GetErrorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestGetErrorInfo_HidesInternalDetails(t *testing.T) {
	info := GetErrorInfo(errors.New("database is locked"))
	if info.Message != "An internal error occurred" {
		t.Errorf("internal error leaked: %q", info.Message)
	}

	info = GetErrorInfo(fmt.Errorf("create user: %w", storage.ErrEmailInUse))
	if len(info.StopCodes) != 1 || info.StopCodes[0] != "auth/email-already-in-use" {
		t.Errorf("unexpected stop codes %v", info.StopCodes)
	}
}

func TestLoginLimiter(t *testing.T) {
	if l := newLoginLimiter(0, 5); l != nil || !l.Allow("x") {
		t.Fatal("zero rate disables limiting")
	}

	l := newLoginLimiter(1, 1)
	if !l.Allow("10.0.0.1") {
		t.Fatal("first attempt must pass")
	}
	if l.Allow("10.0.0.1") {
		t.Error("second attempt within the minute must be refused")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("clients are limited separately")
	}
}
