package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sensor-dashboard/internal/config"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmailInUse    = errors.New("email already in use")
	ErrUnknownColumn = errors.New("unknown column")
	ErrNoStorage     = errors.New("no storage backend configured")
	ErrInvalidPatch  = errors.New("invalid patch value")
)

type Provider interface {
	Close() error
	GetSchemaVersion(ctx context.Context) (int, error)

	// Sensor rows
	ListSensors(ctx context.Context) ([]Sensor, error)
	GetSensor(ctx context.Context, mac string) (*Sensor, error)
	// MergeSensor creates the row when missing, then applies patch.
	MergeSensor(ctx context.Context, mac string, patch Patch) error
	// UpdateSensor applies patch to an existing row, ErrNotFound otherwise.
	UpdateSensor(ctx context.Context, mac string, patch Patch) error

	// Reading history
	AddHistory(ctx context.Context, entry HistoryEntry) error
	LatestHistory(ctx context.Context, mac string) (*HistoryEntry, error)
	// ListHistory returns the most recent limit entries of mac, oldest first.
	ListHistory(ctx context.Context, mac string, limit int) ([]HistoryEntry, error)
	// RecentHistory returns the most recent limit entries of all devices, newest first.
	RecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error)

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, uid string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUserRole(ctx context.Context, uid string, role string) error
	TouchLastLogin(ctx context.Context, uid string, at time.Time) error

	// Nonce-related methods
	CreateNonce(ctx context.Context, nonce string, expiresAt time.Time) error
	ExistsNonce(ctx context.Context, nonce string) (bool, error)
	ConsumeNonce(ctx context.Context, nonce string) (bool, error)
	ExpireNonces(ctx context.Context, now time.Time) error
}

// NewProvider opens the configured backend and brings its schema up to date.
func NewProvider(ctx context.Context, config *config.Storage) (Provider, error) {
	switch {
	case config.SQLite != nil:
		provider, err := NewSQLiteProvider(config)
		if err != nil {
			return nil, err
		}
		if err := provider.Migrate(ctx); err != nil {
			provider.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return provider, nil

	default:
		slog.Error("Unsupported storage configuration", "config", config)
	}

	return nil, ErrNoStorage
}
