package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"sensor-dashboard/internal/config"
)

func newTestProvider(t *testing.T) Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), &config.Storage{
		SQLite: &config.SQLLiteStorage{Path: MemoryDatabase},
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func f64(v float64) *float64 { return &v }

func TestSchemaVersion(t *testing.T) {
	p := newTestProvider(t)
	version, err := p.GetSchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("GetSchemaVersion: %v", err)
	}
	if version != 2 {
		t.Errorf("expected schema version 2, got %d", version)
	}
}

func TestMergeSensor_CreatesAndMerges(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	err := p.MergeSensor(ctx, "AA:BB", Patch{
		"name":       "Kitchen",
		"status":     SensorStatusActive,
		"created_at": ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("MergeSensor: %v", err)
	}

	// Second merge leaves untouched columns alone.
	if err := p.MergeSensor(ctx, "AA:BB", Patch{"temperature": 21.5, "updated_at": ServerTimestamp}); err != nil {
		t.Fatalf("MergeSensor: %v", err)
	}

	s, err := p.GetSensor(ctx, "AA:BB")
	if err != nil {
		t.Fatalf("GetSensor: %v", err)
	}
	if s.Name == nil || *s.Name != "Kitchen" {
		t.Errorf("name lost in merge: %v", s.Name)
	}
	if s.Status != SensorStatusActive {
		t.Errorf("expected active, got %q", s.Status)
	}
	if s.Temperature == nil || *s.Temperature != 21.5 {
		t.Errorf("expected temperature 21.5, got %v", s.Temperature)
	}
	if s.CreatedAt == nil || s.UpdatedAt == nil {
		t.Errorf("expected timestamps to be stamped, got %v %v", s.CreatedAt, s.UpdatedAt)
	}
}

func TestMergeSensor_NilClearsColumn(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	if err := p.MergeSensor(ctx, "AA", Patch{"battery": 80.0, "location": "Roof"}); err != nil {
		t.Fatal(err)
	}
	if err := p.MergeSensor(ctx, "AA", Patch{"battery": nil, "location": (*string)(nil)}); err != nil {
		t.Fatal(err)
	}
	s, err := p.GetSensor(ctx, "AA")
	if err != nil {
		t.Fatal(err)
	}
	if s.Battery != nil || s.Location != nil {
		t.Errorf("expected cleared columns, got battery=%v location=%v", s.Battery, s.Location)
	}
	if s.Status != SensorStatusNone {
		t.Errorf("mirror-only row should have no status, got %q", s.Status)
	}
}

func TestMergeSensor_UnknownColumn(t *testing.T) {
	p := newTestProvider(t)
	err := p.MergeSensor(context.Background(), "AA", Patch{"mac": "BB"})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestUpdateSensor_MissingRow(t *testing.T) {
	p := newTestProvider(t)
	err := p.UpdateSensor(context.Background(), "nope", Patch{"status": SensorStatusArchived})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSensor_Existing(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	if err := p.MergeSensor(ctx, "AA", Patch{"status": SensorStatusActive}); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateSensor(ctx, "AA", Patch{"status": SensorStatusArchived, "updated_at": ServerTimestamp}); err != nil {
		t.Fatalf("UpdateSensor: %v", err)
	}
	s, _ := p.GetSensor(ctx, "AA")
	if !s.Archived() {
		t.Errorf("expected archived sensor, got %q", s.Status)
	}
}

func TestListSensors_OrderedByMAC(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	for _, mac := range []string{"CC", "AA", "BB"} {
		if err := p.MergeSensor(ctx, mac, nil); err != nil {
			t.Fatal(err)
		}
	}
	sensors, err := p.ListSensors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sensors) != 3 || sensors[0].MAC != "AA" || sensors[2].MAC != "CC" {
		t.Fatalf("unexpected order: %+v", sensors)
	}
}

func TestHistory_LatestAndOrdering(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := p.AddHistory(ctx, HistoryEntry{
			ID:          string(rune('a' + i)),
			MAC:         "AA",
			Temperature: f64(float64(20 + i)),
			UpdatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AddHistory: %v", err)
		}
	}
	if err := p.AddHistory(ctx, HistoryEntry{ID: "z", MAC: "BB", UpdatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	latest, err := p.LatestHistory(ctx, "AA")
	if err != nil {
		t.Fatalf("LatestHistory: %v", err)
	}
	if *latest.Temperature != 24 {
		t.Errorf("expected latest temperature 24, got %v", *latest.Temperature)
	}

	list, err := p.ListHistory(ctx, "AA", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || *list[0].Temperature != 22 || *list[2].Temperature != 24 {
		t.Fatalf("expected the three most recent entries oldest first, got %+v", list)
	}

	recent, err := p.RecentHistory(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].MAC != "BB" || recent[1].ID != "e" {
		t.Fatalf("unexpected recent history: %+v", recent)
	}

	if _, err := p.LatestHistory(ctx, "none"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	now := time.Now()

	u := User{UID: "u1", Email: "a@example.com", Name: "A", Role: "user", PasswordHash: "x", CreatedAt: now, LastLogin: &now}
	if err := p.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	dup := u
	dup.UID = "u2"
	dup.Email = "A@Example.com"
	if err := p.CreateUser(ctx, dup); !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}

	got, err := p.GetUserByEmail(ctx, "a@example.com")
	if err != nil || got.UID != "u1" {
		t.Fatalf("GetUserByEmail: %v %+v", err, got)
	}

	if err := p.UpdateUserRole(ctx, "u1", "admin"); err != nil {
		t.Fatal(err)
	}
	got, _ = p.GetUser(ctx, "u1")
	if got.Role != "admin" {
		t.Errorf("expected admin role, got %q", got.Role)
	}

	if err := p.UpdateUserRole(ctx, "ghost", "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := p.GetUser(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNonces(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	if err := p.CreateNonce(ctx, "live", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := p.CreateNonce(ctx, "dead", time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	if ok, _ := p.ExistsNonce(ctx, "live"); !ok {
		t.Error("expected live nonce to exist")
	}
	if ok, _ := p.ExistsNonce(ctx, "dead"); ok {
		t.Error("expired nonce should not exist")
	}
	if ok, _ := p.ConsumeNonce(ctx, "live"); !ok {
		t.Error("expected to consume live nonce")
	}
	if ok, _ := p.ConsumeNonce(ctx, "live"); ok {
		t.Error("nonce consumed twice")
	}
	if err := p.ExpireNonces(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}
}

func TestParseMigrationFile_Invalid(t *testing.T) {
	if _, err := parseMigrationFile("migrations/sqlite3/init.sql"); err == nil {
		t.Fatal("expected error for invalid migration filename")
	}
}

func TestPlan_Down(t *testing.T) {
	mr := NewMigrationRunner(nil, "sqlite3")
	plan, err := mr.Plan(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 2 || plan[0].Version != 2 || plan[0].Up {
		t.Fatalf("unexpected down plan: %+v", plan)
	}
}
