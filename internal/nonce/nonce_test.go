package nonce

import (
	"context"
	"errors"
	"testing"
	"time"

	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/storage"
)

func stores(t *testing.T) map[string]NonceStoreInterface {
	t.Helper()
	provider, err := storage.NewProvider(context.Background(), &config.Storage{
		SQLite: &config.SQLLiteStorage{Path: storage.MemoryDatabase},
	})
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { provider.Close() })

	return map[string]NonceStoreInterface{
		"memory": NewMemoryStore(),
		"sql":    NewSQLNonceStore(provider),
	}
}

func TestNonce_SingleUse(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			n, err := New(ctx, store, time.Minute)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !store.Exists(ctx, n) {
				t.Fatal("nonce should exist after New")
			}
			if ok, err := store.Consume(ctx, n); !ok || err != nil {
				t.Fatalf("first consume: ok=%v err=%v", ok, err)
			}
			ok, err := store.Consume(ctx, n)
			if ok {
				t.Fatal("nonce consumed twice")
			}
			var missing *NonceMissingError
			if !errors.As(err, &missing) {
				t.Fatalf("expected NonceMissingError, got %v", err)
			}
		})
	}
}

func TestMemoryStore_RejectsZeroTTL(t *testing.T) {
	m := NewMemoryStore()
	if err := m.Put(context.Background(), "x", 0); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
	// The lock must have been released.
	if err := m.Put(context.Background(), "y", time.Second); err != nil {
		t.Fatalf("Put after failure: %v", err)
	}
}

func TestMemoryStore_Expired(t *testing.T) {
	m := NewMemoryStore()
	m.expiry["old"] = time.Now().Add(-time.Second)
	m.Put(context.Background(), "live", time.Minute)
	if n := m.Active(); n != 1 {
		t.Errorf("expected 1 active session, got %d", n)
	}

	if m.Exists(context.Background(), "old") {
		t.Error("expired nonce reported as existing")
	}
	_, err := m.Consume(context.Background(), "old")
	var expired *NonceExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected NonceExpiredError, got %v", err)
	}
}

func TestNewStore_Unknown(t *testing.T) {
	if _, err := NewStore(&config.Config{NonceStore: "redis"}, nil); err == nil {
		t.Fatal("expected error for unknown store type")
	}
}
