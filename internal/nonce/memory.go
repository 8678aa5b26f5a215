package nonce

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps session nonces in process memory. Sessions do not survive
// a restart; use the SQL store for that.
type MemoryStore struct {
	mu       sync.RWMutex
	expiry   map[string]time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expiry: make(map[string]time.Time),
		stop:   make(chan struct{}),
	}
}

func (m *MemoryStore) Put(ctx context.Context, nonce string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	m.mu.Lock()
	m.expiry[nonce] = time.Now().Add(ttl)
	m.mu.Unlock()
	return nil
}

// Consume removes nonce whether or not it has expired.
func (m *MemoryStore) Consume(ctx context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	exp, ok := m.expiry[nonce]
	delete(m.expiry, nonce)
	m.mu.Unlock()

	switch {
	case !ok:
		return false, &NonceMissingError{Nonce: nonce}
	case time.Now().After(exp):
		return false, &NonceExpiredError{Nonce: nonce, Expiry: exp}
	}
	return true, nil
}

func (m *MemoryStore) Exists(ctx context.Context, nonce string) bool {
	m.mu.RLock()
	exp, ok := m.expiry[nonce]
	m.mu.RUnlock()
	return ok && time.Now().Before(exp)
}

// Active counts live sessions.
func (m *MemoryStore) Active() int {
	now := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, exp := range m.expiry {
		if now.Before(exp) {
			n++
		}
	}
	return n
}

func (m *MemoryStore) ExpireNonces(ctx context.Context) error {
	now := time.Now()
	pruned := 0
	m.mu.Lock()
	for k, exp := range m.expiry {
		if now.After(exp) {
			delete(m.expiry, k)
			pruned++
		}
	}
	m.mu.Unlock()
	if pruned > 0 {
		slog.Debug("Pruned expired sessions", "count", pruned)
	}
	return nil
}

func (m *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.ExpireNonces(context.Background())
		case <-m.stop:
			return
		}
	}
}

func (m *MemoryStore) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}
