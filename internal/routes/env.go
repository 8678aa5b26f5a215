package routes

import (
	"log/slog"
	"time"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/auth"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/feed"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/storage"
)

// Env carries the services handlers need.
type Env struct {
	Storage storage.Provider
	Policy  access.Policy
	Issuer  *auth.Issuer
	Hub     *feed.Hub
	Metrics *metrics.Metrics
	Loader  *dashboard.Loader

	BaseURL      string
	SupportURL   string
	HistoryLimit int

	limiter *loginLimiter
	logger  *slog.Logger
}

func NewEnv(cfg *config.Config, provider storage.Provider, policy access.Policy, issuer *auth.Issuer, hub *feed.Hub, m *metrics.Metrics) *Env {
	return &Env{
		Storage:      provider,
		Policy:       policy,
		Issuer:       issuer,
		Hub:          hub,
		Metrics:      m,
		Loader:       dashboard.NewLoader(provider, policy, cfg.DiscoveryLimit),
		BaseURL:      cfg.BaseURL,
		SupportURL:   cfg.SupportURL,
		HistoryLimit: cfg.HistoryLimit,
		limiter:      newLoginLimiter(cfg.LoginRate, cfg.LoginBurst),
		logger:       slog.With("component", "http"),
	}
}

// authTTL is the lifetime of a session cookie.
func (env *Env) authTTL() time.Duration {
	return env.Issuer.TTL()
}
