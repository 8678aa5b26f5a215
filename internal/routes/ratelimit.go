package routes

import (
	"sync"

	"golang.org/x/time/rate"
)

// Forget all clients once this many are tracked.
const maxTrackedClients = 10000

// loginLimiter throttles login and signup attempts per client IP.
type loginLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

// newLoginLimiter allows perMinute attempts with the given burst. A
// non-positive rate disables limiting.
func newLoginLimiter(perMinute float64, burst int) *loginLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &loginLimiter{
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *loginLimiter) Allow(client string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			clear(l.clients)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[client] = lim
	}
	return lim.Allow()
}
