// Package dashboard turns sensor rows and their latest readings into the
// cards shown on the dashboard.
package dashboard

import (
	"math"
	"sort"
	"strconv"
	"time"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/storage"
)

// Sentinel is shown in place of a missing or non-numeric value.
const Sentinel = "—"

const UnknownLocation = "Unknown"

const mapURLPrefix = "https://www.google.com/maps?q="

// Where the readings of a card came from.
const (
	SourceHistory = "history"
	SourceSensor  = "sensor"
)

// Reading is one gauge on a card.
type Reading struct {
	// Display is the value with one decimal, or Sentinel.
	Display string `json:"display"`
	// Value drives the gauge needle, 0 when absent.
	Value   float64 `json:"value"`
	Present bool    `json:"present"`
}

type Coordinates struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	MapURL    string `json:"mapUrl"`
}

// Actions lists the buttons a viewer gets on a card.
type Actions struct {
	History bool `json:"history"`
	Locate  bool `json:"locate"`
	Archive bool `json:"archive"`
}

type Card struct {
	MAC         string       `json:"mac"`
	DisplayName string       `json:"displayName"`
	Temperature Reading      `json:"temperature"`
	Humidity    Reading      `json:"humidity"`
	Dust        Reading      `json:"dust"`
	Battery     string       `json:"battery"`
	Location    string       `json:"location"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	UpdatedAt   *time.Time   `json:"updatedAt,omitempty"`
	Source      string       `json:"source"`
	Actions     Actions      `json:"actions"`
}

func valid(v *float64) bool {
	return v != nil && !math.IsNaN(*v)
}

// NewReading formats v with one decimal, or returns the sentinel reading.
func NewReading(v *float64) Reading {
	if !valid(v) {
		return Reading{Display: Sentinel}
	}
	return Reading{
		Display: strconv.FormatFloat(*v, 'f', 1, 64),
		Value:   *v,
		Present: true,
	}
}

// FormatCoordinate renders a coordinate with six decimals. ok is false for
// absent or non-finite values.
func FormatCoordinate(v *float64) (string, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "", false
	}
	return strconv.FormatFloat(*v, 'f', 6, 64), true
}

// shortFloat renders v the way a browser prints a number: shortest exact form.
func shortFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MapURL links to a map centred on lat,lng.
func MapURL(lat, lng float64) string {
	return mapURLPrefix + shortFloat(lat) + "," + shortFloat(lng)
}

// NewCoordinates returns nil unless both coordinates are finite.
func NewCoordinates(lat, lng *float64) *Coordinates {
	latText, okLat := FormatCoordinate(lat)
	lngText, okLng := FormatCoordinate(lng)
	if !okLat || !okLng {
		return nil
	}
	return &Coordinates{
		Latitude:  latText,
		Longitude: lngText,
		MapURL:    MapURL(*lat, *lng),
	}
}

func formatBattery(v *float64) string {
	if !valid(v) {
		return Sentinel
	}
	return shortFloat(*v) + "%"
}

// DisplayName is the sensor name, or its MAC when unnamed.
func DisplayName(s storage.Sensor) string {
	if s.Name != nil && *s.Name != "" {
		return *s.Name
	}
	return s.MAC
}

// BuildCards produces one card per non-archived sensor, ordered by MAC.
//
// Authenticated viewers see the readings of latest[mac]; a sensor without
// history then shows the sentinel. Guests see the values mirrored onto the
// sensor row. Battery, location and coordinates always come from the row.
func BuildCards(sensors []storage.Sensor, latest map[string]*storage.HistoryEntry, session access.Session, policy access.Policy) []Card {
	actions := Actions{
		History: session.Can(policy, access.ViewHistory),
		Locate:  session.Can(policy, access.UpdateLocation),
		Archive: session.Can(policy, access.DeleteSensor),
	}

	cards := make([]Card, 0, len(sensors))
	for _, s := range sensors {
		if s.Archived() {
			continue
		}

		card := Card{
			MAC:         s.MAC,
			DisplayName: DisplayName(s),
			Battery:     formatBattery(s.Battery),
			Location:    UnknownLocation,
			Coordinates: NewCoordinates(s.Latitude, s.Longitude),
			Actions:     actions,
		}
		if s.Location != nil && *s.Location != "" {
			card.Location = *s.Location
		}

		if session.Authenticated() {
			card.Source = SourceHistory
			var temperature, humidity, dust *float64
			if entry := latest[s.MAC]; entry != nil {
				temperature, humidity, dust = entry.Temperature, entry.Humidity, entry.Dust
				updated := entry.UpdatedAt
				card.UpdatedAt = &updated
			}
			card.Temperature = NewReading(temperature)
			card.Humidity = NewReading(humidity)
			card.Dust = NewReading(dust)
		} else {
			card.Source = SourceSensor
			card.Temperature = NewReading(s.Temperature)
			card.Humidity = NewReading(s.Humidity)
			card.Dust = NewReading(s.Dust)
			card.UpdatedAt = s.UpdatedAt
		}

		cards = append(cards, card)
	}

	sort.Slice(cards, func(i, j int) bool { return cards[i].MAC < cards[j].MAC })
	return cards
}
