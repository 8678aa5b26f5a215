package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"sensor-dashboard/internal/feed"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/storage"

	"github.com/google/uuid"
)

// Sources of recorded readings, used as a metrics label.
const (
	SourceBroker     = "broker"
	SourceSubscriber = "subscriber"
	SourceCLI        = "cli"
)

// CreateHook runs synchronously for every history entry once it is stored.
type CreateHook func(ctx context.Context, entry storage.HistoryEntry) error

// Recorder appends readings to history and announces them on the feed.
type Recorder struct {
	storage  storage.Provider
	hub      *feed.Hub
	metrics  *metrics.Metrics
	onCreate CreateHook
	logger   *slog.Logger
}

// NewRecorder returns a recorder. hub and m may be nil.
func NewRecorder(provider storage.Provider, hub *feed.Hub, m *metrics.Metrics) *Recorder {
	return &Recorder{
		storage: provider,
		hub:     hub,
		metrics: m,
		logger:  slog.With("component", "ingest"),
	}
}

// OnCreate sets the hook run after each stored entry and returns r.
func (r *Recorder) OnCreate(hook CreateHook) *Recorder {
	r.onCreate = hook
	return r
}

// Record stores reading as a new history entry of mac. A failing create hook
// does not undo the entry: it is returned together with the hook's error.
func (r *Recorder) Record(ctx context.Context, source string, mac string, reading Reading) (*storage.HistoryEntry, error) {
	mac = strings.TrimSpace(mac)
	if mac == "" {
		return nil, ErrMissingMAC
	}

	entry := reading.Entry(mac)
	entry.ID = uuid.NewString()
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	if err := r.storage.AddHistory(ctx, entry); err != nil {
		r.logger.Error("Failed to record reading", "mac", mac, "source", source, "error", err)
		return nil, err
	}
	r.metrics.ObserveReading(source, entry)
	r.logger.Debug("Recorded reading", "mac", mac, "source", source, "id", entry.ID)

	var hookErr error
	if r.onCreate != nil {
		hookErr = r.onCreate(ctx, entry)
	}

	// The feed only notifies views; it may drop under load.
	if r.hub != nil {
		r.hub.Publish(feed.Event{Topic: feed.TopicHistory, MAC: mac, Entry: &entry})
	}
	return &entry, hookErr
}

// HandleMessage records an MQTT message published on a topic matching filter.
func (r *Recorder) HandleMessage(ctx context.Context, source, filter, topic string, payload []byte) error {
	mac, err := MACFromTopic(filter, topic)
	if err != nil {
		return err
	}
	reading, err := DecodeReading(payload)
	if err != nil {
		r.logger.Warn("Discarding malformed reading", "topic", topic, "error", err)
		return err
	}
	_, err = r.Record(ctx, source, mac, reading)
	return err
}
