package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"sensor-dashboard/internal/storage"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func assertLine(t *testing.T, body, line string) {
	t.Helper()
	if !strings.Contains(body, line) {
		t.Errorf("expected %q in exposition:\n%s", line, body)
	}
}

func TestObserveReading(t *testing.T) {
	m := New()
	temp := 21.5
	m.ObserveReading("mqtt", storage.HistoryEntry{MAC: "AA", Temperature: &temp})
	m.ObserveReading("mqtt", storage.HistoryEntry{MAC: "AA"})

	body := scrape(t, m)
	assertLine(t, body, `sensor_dashboard_history_ingested_total{source="mqtt"} 2`)
	assertLine(t, body, `sensor_dashboard_sensor_temperature_celsius{mac="AA"} 21.5`)
	if strings.Contains(body, `sensor_dashboard_sensor_humidity_percent{mac="AA"}`) {
		t.Error("absent humidity should not create a gauge")
	}
}

func TestMirrorWriteAndDrops(t *testing.T) {
	m := New()
	m.MirrorWrite(nil)
	m.MirrorWrite(errors.New("boom"))
	m.FeedDropped("history")

	body := scrape(t, m)
	assertLine(t, body, `sensor_dashboard_mirror_writes_total{result="error"} 1`)
	assertLine(t, body, `sensor_dashboard_mirror_writes_total{result="ok"} 1`)
	assertLine(t, body, `sensor_dashboard_feed_dropped_total{topic="history"} 1`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveReading("cli", storage.HistoryEntry{})
	m.MirrorWrite(nil)
	m.FeedDropped("sensors")
	m.LoginAttempt("ok")
	m.StreamOpened()
	m.StreamClosed()
}
