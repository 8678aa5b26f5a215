// Package ingest records sensor readings arriving over MQTT, either through
// an embedded broker or by subscribing to an external one.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sensor-dashboard/internal/storage"
)

var (
	ErrTopicMismatch  = errors.New("topic does not match history pattern")
	ErrMissingMAC     = errors.New("mac is required")
	ErrInvalidPayload = errors.New("invalid reading payload")
)

// Reading is the JSON payload a device publishes:
//
//	{"temperature": 24.1, "humidity": 60, "dust": 12.5, "battery": 87,
//	 "latitude": 13.7563, "longitude": 100.5018, "location": "Lab 2",
//	 "updatedAt": "2025-01-02T15:04:05Z"}
//
// Every field is optional.
type Reading struct {
	Temperature *float64   `json:"temperature,omitempty"`
	Humidity    *float64   `json:"humidity,omitempty"`
	Dust        *float64   `json:"dust,omitempty"`
	Battery     *float64   `json:"battery,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Location    *string    `json:"location,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func DecodeReading(payload []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return r, nil
}

// Entry converts the reading into a history entry for mac. ID and time
// are filled in by the Recorder.
func (r Reading) Entry(mac string) storage.HistoryEntry {
	entry := storage.HistoryEntry{
		MAC:         mac,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Dust:        r.Dust,
		Battery:     r.Battery,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Location:    r.Location,
	}
	if r.UpdatedAt != nil {
		entry.UpdatedAt = *r.UpdatedAt
	}
	return entry
}

// TopicMatches reports whether topic matches the subscription filter,
// honouring the single level "+" and trailing multi level "#" wildcards.
func TopicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, part := range f {
		if part == "#" {
			return i == len(f)-1
		}
		if i >= len(t) {
			return false
		}
		if part != "+" && part != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}

// MACFromTopic extracts the device MAC from the first "+" level of filter,
// e.g. "sensors/+/history" and "sensors/AA:BB/history" give "AA:BB".
func MACFromTopic(filter, topic string) (string, error) {
	if !TopicMatches(filter, topic) {
		return "", fmt.Errorf("%w: %s", ErrTopicMismatch, topic)
	}
	t := strings.Split(topic, "/")
	for i, part := range strings.Split(filter, "/") {
		if part == "+" {
			mac := strings.TrimSpace(t[i])
			if mac == "" {
				return "", ErrMissingMAC
			}
			return mac, nil
		}
	}
	return "", fmt.Errorf("%w: filter %q has no device level", ErrTopicMismatch, filter)
}
