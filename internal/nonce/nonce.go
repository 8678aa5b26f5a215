// Package nonce keeps single-use token identifiers. Session tokens carry a
// nonce as their ID; consuming it revokes the session.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/storage"
)

// Number of random bytes. 16 → 128‑bit
const NONCE_SIZE = 16

type NonceStoreType string

// Supported nonce stores.
const (
	Memory NonceStoreType = "memory"
	SQL    NonceStoreType = "sql"
)

var ErrInvalidTTL = errors.New("nonce ttl must be positive")

type NonceMissingError struct {
	Nonce string
}

// Error implements the error interface.
func (e *NonceMissingError) Error() string {
	return fmt.Sprintf("nonce not found: %s", e.Nonce)
}

type NonceExpiredError struct {
	Nonce  string
	Expiry time.Time
}

// Error implements the error interface.
func (e *NonceExpiredError) Error() string {
	return fmt.Sprintf("nonce expired: %s (expiry: %s)", e.Nonce, e.Expiry)
}

type NonceStoreInterface interface {
	// stores a nonce with a TTL.
	Put(ctx context.Context, nonce string, ttl time.Duration) error
	// verifies and deletes the nonce.
	// Returns true if the nonce existed (valid request), false otherwise.
	Consume(ctx context.Context, nonce string) (bool, error)

	Exists(ctx context.Context, nonce string) bool

	ExpireNonces(ctx context.Context) error

	// Close stops the background janitor.
	Close()
}

func generateNonceToken() (string, error) {
	b := make([]byte, NONCE_SIZE)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// New creates a nonce, stores it with ttl and returns it.
func New(ctx context.Context, store NonceStoreInterface, ttl time.Duration) (string, error) {
	nonce, err := generateNonceToken()
	if err != nil {
		return "", err
	}
	if err := store.Put(ctx, nonce, ttl); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	return nonce, nil
}

// NewStore builds the store selected by cfg.NonceStore and starts its janitor.
func NewStore(cfg *config.Config, storageProvider storage.Provider) (NonceStoreInterface, error) {
	interval := time.Duration(cfg.NonceJanitorInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	var store NonceStoreInterface
	switch NonceStoreType(cfg.NonceStore) {
	case Memory:
		s := NewMemoryStore()
		go s.janitor(interval)
		store = s
	case SQL:
		if storageProvider == nil {
			return nil, fmt.Errorf("sql nonce store requires a storage provider")
		}
		s := NewSQLNonceStore(storageProvider)
		go s.janitor(interval)
		store = s
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.NonceStore)
	}

	slog.Info("Initialized nonce store", "type", cfg.NonceStore, "janitor_interval", interval)
	return store, nil
}
