package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/storage"
)

// View is everything the dashboard page renders for one viewer.
type View struct {
	Cards []Card `json:"cards"`
	// MACs for the bind dialog. Only filled for viewers who may add sensors.
	BindChoices []string `json:"bindChoices,omitempty"`
	// Archived sensors, listed for viewers who may restore them.
	Archived     []string            `json:"archived,omitempty"`
	Role         access.Role         `json:"role"`
	Capabilities []access.Capability `json:"capabilities"`
	LoggedIn     bool                `json:"loggedIn"`
}

// Loader reads the rows behind a View.
type Loader struct {
	Storage storage.Provider
	Policy  access.Policy
	// Recent history entries scanned for MAC discovery.
	DiscoveryLimit int

	logger *slog.Logger
}

func NewLoader(provider storage.Provider, policy access.Policy, discoveryLimit int) *Loader {
	return &Loader{
		Storage:        provider,
		Policy:         policy,
		DiscoveryLimit: discoveryLimit,
		logger:         slog.With("component", "dashboard"),
	}
}

// LatestByMAC fetches the newest history entry of each sensor. Sensors
// without history are absent from the map.
func (l *Loader) LatestByMAC(ctx context.Context, sensors []storage.Sensor) (map[string]*storage.HistoryEntry, error) {
	latest := make(map[string]*storage.HistoryEntry, len(sensors))
	for _, s := range sensors {
		if s.Archived() {
			continue
		}
		entry, err := l.Storage.LatestHistory(ctx, s.MAC)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		latest[s.MAC] = entry
	}
	return latest, nil
}

// Load builds the view for session. History is only read for viewers who
// may see it; guests get the mirrored values on the sensor rows.
func (l *Loader) Load(ctx context.Context, session access.Session) (*View, error) {
	sensors, err := l.Storage.ListSensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sensors: %w", err)
	}

	canHistory := session.Authenticated() && session.Can(l.Policy, access.ViewHistory)

	var latest map[string]*storage.HistoryEntry
	if canHistory {
		if latest, err = l.LatestByMAC(ctx, sensors); err != nil {
			// Cards fall back to the sentinel rather than failing the page.
			l.logger.Warn("Failed to load latest history", "error", err)
			latest = nil
		}
	}

	view := &View{
		Cards:        BuildCards(sensors, latest, session, l.Policy),
		Role:         session.EffectiveRole(),
		Capabilities: l.Policy.Allowed(session.EffectiveRole()),
		LoggedIn:     session.Authenticated(),
	}

	if session.Can(l.Policy, access.AddSensor) {
		var discovered []string
		if canHistory && l.DiscoveryLimit > 0 {
			recent, err := l.Storage.RecentHistory(ctx, l.DiscoveryLimit)
			if err != nil {
				l.logger.Warn("Failed to discover MACs from history", "error", err)
			} else {
				discovered = DiscoverMACs(recent)
			}
		}
		view.BindChoices = BindChoices(discovered, sensors)
	}

	if session.Can(l.Policy, access.DeleteSensor) {
		for _, s := range sensors {
			if s.Archived() {
				view.Archived = append(view.Archived, s.MAC)
			}
		}
	}

	return view, nil
}
