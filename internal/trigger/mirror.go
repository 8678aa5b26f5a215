// Package trigger keeps each sensor row in step with its newest reading.
package trigger

import (
	"context"
	"log/slog"

	"sensor-dashboard/internal/feed"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/storage"
)

// Mirror copies a freshly created history entry onto sensors/{mac} so
// viewers without history access still see current values. It is wired as
// the recorder's create hook, so every stored entry is mirrored.
type Mirror struct {
	storage storage.Provider
	hub     *feed.Hub
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewMirror returns a mirror writing to provider. hub and m may be nil.
func NewMirror(provider storage.Provider, hub *feed.Hub, m *metrics.Metrics) *Mirror {
	return &Mirror{
		storage: provider,
		hub:     hub,
		metrics: m,
		logger:  slog.With("component", "mirror"),
	}
}

// Patch builds the merge write for entry. Readings are always written, NULL
// when absent. Battery, coordinates and location are cleared when absent.
func Patch(entry storage.HistoryEntry) storage.Patch {
	return storage.Patch{
		"temperature": entry.Temperature,
		"humidity":    entry.Humidity,
		"dust":        entry.Dust,
		"battery":     entry.Battery,
		"latitude":    entry.Latitude,
		"longitude":   entry.Longitude,
		"location":    entry.Location,
		"updated_at":  storage.ServerTimestamp,
	}
}

// Handle merges entry into its sensor row, creating the row when missing.
// Concurrent entries for one MAC are not ordered: the last write wins.
func (m *Mirror) Handle(ctx context.Context, entry storage.HistoryEntry) error {
	err := m.storage.MergeSensor(ctx, entry.MAC, Patch(entry))
	m.metrics.MirrorWrite(err)
	if err != nil {
		m.logger.Error("Failed to mirror latest reading", "mac", entry.MAC, "history_id", entry.ID, "error", err)
		return err
	}

	m.logger.Debug("Mirrored latest reading", "mac", entry.MAC, "history_id", entry.ID)
	if m.hub != nil {
		m.hub.Publish(feed.Event{Topic: feed.TopicSensors, MAC: entry.MAC})
	}
	return nil
}
