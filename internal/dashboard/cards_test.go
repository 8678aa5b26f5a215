package dashboard

import (
	"math"
	"testing"
	"time"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/storage"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

var (
	guest = access.GuestSession()
	user  = access.Session{UserID: "u1", Role: access.RoleUser}
	admin = access.Session{UserID: "a1", Role: access.RoleAdmin}
)

func TestBuildCards_SkipsArchivedForEveryRole(t *testing.T) {
	sensors := []storage.Sensor{
		{MAC: "AA", Status: storage.SensorStatusActive},
		{MAC: "BB", Status: storage.SensorStatusArchived},
		{MAC: "CC"},
	}
	for _, session := range []access.Session{guest, user, admin} {
		cards := BuildCards(sensors, nil, session, access.DefaultPolicy())
		if len(cards) != 2 {
			t.Fatalf("role %s: expected 2 cards, got %d", session.EffectiveRole(), len(cards))
		}
		for _, c := range cards {
			if c.MAC == "BB" {
				t.Fatalf("role %s: archived sensor shown", session.EffectiveRole())
			}
		}
	}
}

func TestBuildCards_OrderedByMAC(t *testing.T) {
	sensors := []storage.Sensor{{MAC: "CC"}, {MAC: "AA"}, {MAC: "BB"}}
	cards := BuildCards(sensors, nil, guest, access.DefaultPolicy())
	if cards[0].MAC != "AA" || cards[1].MAC != "BB" || cards[2].MAC != "CC" {
		t.Fatalf("unexpected order: %v %v %v", cards[0].MAC, cards[1].MAC, cards[2].MAC)
	}
}

func TestBuildCards_DisplayName(t *testing.T) {
	sensors := []storage.Sensor{
		{MAC: "AA", Name: str("Kitchen")},
		{MAC: "BB", Name: str("")},
		{MAC: "CC"},
	}
	cards := BuildCards(sensors, nil, guest, access.DefaultPolicy())
	want := []string{"Kitchen", "BB", "CC"}
	for i, c := range cards {
		if c.DisplayName != want[i] {
			t.Errorf("card %s: expected %q, got %q", c.MAC, want[i], c.DisplayName)
		}
	}
}

func TestBuildCards_LoggedInUsesLatestHistory(t *testing.T) {
	metaTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	historyTime := metaTime.Add(time.Hour)
	sensors := []storage.Sensor{{
		MAC:         "AA",
		Temperature: f64(10),
		Humidity:    f64(20),
		Dust:        f64(30),
		UpdatedAt:   &metaTime,
	}}
	latest := map[string]*storage.HistoryEntry{
		"AA": {MAC: "AA", Temperature: f64(25.46), Humidity: f64(61), Dust: f64(12.04), UpdatedAt: historyTime},
	}

	card := BuildCards(sensors, latest, user, access.DefaultPolicy())[0]
	if card.Temperature.Display != "25.5" || card.Temperature.Value != 25.46 {
		t.Errorf("temperature should come from history: %+v", card.Temperature)
	}
	if card.Humidity.Display != "61.0" || card.Dust.Display != "12.0" {
		t.Errorf("unexpected humidity/dust: %+v %+v", card.Humidity, card.Dust)
	}
	if card.UpdatedAt == nil || !card.UpdatedAt.Equal(historyTime) {
		t.Errorf("updated at should come from history, got %v", card.UpdatedAt)
	}
	if card.Source != SourceHistory {
		t.Errorf("expected history source, got %q", card.Source)
	}

	guestCard := BuildCards(sensors, latest, guest, access.DefaultPolicy())[0]
	if guestCard.Temperature.Display != "10.0" || !guestCard.UpdatedAt.Equal(metaTime) {
		t.Errorf("guest should see sensor row values: %+v", guestCard)
	}
}

func TestBuildCards_LoggedInWithoutHistoryShowsSentinel(t *testing.T) {
	sensors := []storage.Sensor{{MAC: "AA", Temperature: f64(10)}}
	card := BuildCards(sensors, map[string]*storage.HistoryEntry{}, user, access.DefaultPolicy())[0]
	if card.Temperature.Display != Sentinel || card.Temperature.Value != 0 || card.Temperature.Present {
		t.Errorf("expected sentinel reading, got %+v", card.Temperature)
	}
	if card.UpdatedAt != nil {
		t.Errorf("expected no update time, got %v", card.UpdatedAt)
	}
}

func TestBuildCards_NaNIsSentinel(t *testing.T) {
	sensors := []storage.Sensor{{MAC: "AA", Humidity: f64(math.NaN()), Battery: f64(math.NaN())}}
	card := BuildCards(sensors, nil, guest, access.DefaultPolicy())[0]
	if card.Humidity.Display != Sentinel || card.Humidity.Value != 0 {
		t.Errorf("NaN humidity should render sentinel, got %+v", card.Humidity)
	}
	if card.Battery != Sentinel {
		t.Errorf("NaN battery should render sentinel, got %q", card.Battery)
	}
}

func TestBuildCards_BatteryAndLocation(t *testing.T) {
	sensors := []storage.Sensor{
		{MAC: "AA", Battery: f64(87), Location: str("Roof")},
		{MAC: "BB", Battery: f64(42.5)},
		{MAC: "CC", Location: str("")},
	}
	cards := BuildCards(sensors, nil, guest, access.DefaultPolicy())
	if cards[0].Battery != "87%" || cards[0].Location != "Roof" {
		t.Errorf("unexpected card: %+v", cards[0])
	}
	if cards[1].Battery != "42.5%" || cards[1].Location != UnknownLocation {
		t.Errorf("unexpected card: %+v", cards[1])
	}
	if cards[2].Battery != Sentinel || cards[2].Location != UnknownLocation {
		t.Errorf("unexpected card: %+v", cards[2])
	}
}

func TestCoordinates(t *testing.T) {
	c := NewCoordinates(f64(13.7563), f64(100.5018))
	if c == nil {
		t.Fatal("expected coordinates")
	}
	if c.Latitude != "13.756300" || c.Longitude != "100.501800" {
		t.Errorf("unexpected formatting: %+v", c)
	}
	if c.MapURL != "https://www.google.com/maps?q=13.7563,100.5018" {
		t.Errorf("unexpected map link: %s", c.MapURL)
	}

	tests := []struct {
		name     string
		lat, lng *float64
	}{
		{"missing latitude", nil, f64(1)},
		{"missing longitude", f64(1), nil},
		{"nan", f64(math.NaN()), f64(1)},
		{"infinite", f64(1), f64(math.Inf(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewCoordinates(tt.lat, tt.lng); got != nil {
				t.Errorf("expected coordinates to be omitted, got %+v", got)
			}
		})
	}
}

func TestBuildCards_ActionsFollowPermissions(t *testing.T) {
	sensors := []storage.Sensor{{MAC: "AA"}}
	policy := access.DefaultPolicy()

	tests := []struct {
		session access.Session
		want    Actions
	}{
		{guest, Actions{}},
		{user, Actions{History: true}},
		{admin, Actions{History: true, Locate: true, Archive: true}},
	}
	for _, tt := range tests {
		got := BuildCards(sensors, nil, tt.session, policy)[0].Actions
		if got != tt.want {
			t.Errorf("role %s: expected %+v, got %+v", tt.session.EffectiveRole(), tt.want, got)
		}
	}
}
