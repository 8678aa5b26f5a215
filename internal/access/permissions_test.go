package access

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicy_Table(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		role       Role
		capability Capability
		want       bool
	}{
		{RoleGuest, ViewData, true},
		{RoleGuest, ViewHistory, false},
		{RoleGuest, AddSensor, false},
		{RoleGuest, DeleteSensor, false},
		{RoleGuest, UpdateLocation, false},
		{RoleUser, ViewData, true},
		{RoleUser, ViewHistory, true},
		{RoleUser, AddSensor, false},
		{RoleUser, DeleteSensor, false},
		{RoleUser, UpdateLocation, false},
		{RoleAdmin, ViewData, true},
		{RoleAdmin, ViewHistory, true},
		{RoleAdmin, AddSensor, true},
		{RoleAdmin, DeleteSensor, true},
		{RoleAdmin, UpdateLocation, true},
	}

	for _, tt := range tests {
		if got := p.HasPermission(tt.role, tt.capability); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.capability, got, tt.want)
		}
	}
}

func TestDefaultPolicy_TotalAndMonotonic(t *testing.T) {
	p := DefaultPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy does not validate: %v", err)
	}

	// admin ⊇ user ⊇ guest for every capability
	for _, capability := range Capabilities {
		if _, ok := p[capability]; !ok {
			t.Errorf("capability %s missing from table", capability)
		}
		for i := 0; i < len(Roles)-1; i++ {
			lower, higher := Roles[i], Roles[i+1]
			if p.HasPermission(lower, capability) && !p.HasPermission(higher, capability) {
				t.Errorf("%s granted to %s but not to %s", capability, lower, higher)
			}
		}
	}
}

func TestHasPermission_UnknownCapabilityFailsClosed(t *testing.T) {
	p := DefaultPolicy()
	for _, role := range Roles {
		for _, name := range []string{"", "drop_database", "VIEW_DATA", "view_data "} {
			if p.HasPermission(role, Capability(name)) {
				t.Errorf("unknown capability %q granted to %s", name, role)
			}
		}
	}
}

func TestHasPermission_UnknownRoleDenied(t *testing.T) {
	p := DefaultPolicy()
	for _, capability := range Capabilities {
		if p.HasPermission(Role("superuser"), capability) {
			t.Errorf("unknown role granted %s", capability)
		}
	}
}

func TestDefaultPolicy_ReturnsCopy(t *testing.T) {
	p := DefaultPolicy()
	p[AddSensor][RoleGuest] = true

	if DefaultPolicy().HasPermission(RoleGuest, AddSensor) {
		t.Fatal("mutating a returned policy changed the built-in table")
	}
}

func TestValidate_Rejects(t *testing.T) {
	missing := DefaultPolicy()
	delete(missing, UpdateLocation)
	if err := missing.Validate(); !errors.Is(err, ErrCapabilityMissing) {
		t.Errorf("missing capability: got %v", err)
	}

	inverted := DefaultPolicy()
	inverted[ViewHistory] = map[Role]bool{RoleGuest: true, RoleAdmin: true}
	if err := inverted.Validate(); !errors.Is(err, ErrNotMonotonic) {
		t.Errorf("non-monotonic table: got %v", err)
	}

	badRole := DefaultPolicy()
	badRole[ViewData][Role("root")] = true
	if err := badRole.Validate(); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("unknown role: got %v", err)
	}
}

func TestAllowed(t *testing.T) {
	p := DefaultPolicy()
	got := p.Allowed(RoleUser)
	if len(got) != 2 || got[0] != ViewData || got[1] != ViewHistory {
		t.Errorf("Allowed(user) = %v", got)
	}
	if len(p.Allowed(RoleAdmin)) != len(Capabilities) {
		t.Errorf("admin should hold every capability, got %v", p.Allowed(RoleAdmin))
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Admin "); err != nil || r != RoleAdmin {
		t.Errorf("ParseRole(Admin) = %v, %v", r, err)
	}
	if _, err := ParseRole("owner"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("ParseRole(owner): got %v", err)
	}
	if _, err := ParseCapability("teleport"); !errors.Is(err, ErrUnknownCapability) {
		t.Errorf("ParseCapability(teleport): got %v", err)
	}
}

func TestSession_EffectiveRole(t *testing.T) {
	p := DefaultPolicy()

	guest := GuestSession()
	if guest.Authenticated() || guest.EffectiveRole() != RoleGuest {
		t.Errorf("guest session: %+v", guest)
	}
	if guest.Can(p, ViewHistory) {
		t.Error("guest must not view history")
	}

	// Logged in without a role document defaults to user
	noRole := Session{UserID: "u1"}
	if noRole.EffectiveRole() != RoleUser {
		t.Errorf("EffectiveRole without role: got %s", noRole.EffectiveRole())
	}
	if !noRole.Can(p, ViewHistory) {
		t.Error("logged in user should view history")
	}

	// A stored guest role is not raised
	demoted := Session{UserID: "u2", Role: RoleGuest}
	if demoted.EffectiveRole() != RoleGuest {
		t.Errorf("EffectiveRole for stored guest: got %s", demoted.EffectiveRole())
	}
	if demoted.Can(p, ViewHistory) || !demoted.Can(p, ViewData) {
		t.Error("stored guest role must keep guest permissions")
	}

	// A role without a user id is still a guest
	spoofed := Session{Role: RoleAdmin}
	if spoofed.Can(p, AddSensor) {
		t.Error("unauthenticated session must not act as admin")
	}
}

func TestLoadPolicy_File(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "policy.yaml")
	os.WriteFile(valid, []byte(`
capabilities:
  view_data: [guest, user, admin]
  view_history: [user, admin]
  add_sensor: [user, admin]
  delete_sensor: [admin]
  update_location: [admin]
`), 0644)

	p, err := LoadPolicy(valid)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if !p.HasPermission(RoleUser, AddSensor) {
		t.Error("policy file grant not applied")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte(`
capabilities:
  view_data: [guest]
  view_history: [user, admin]
  add_sensor: [admin]
  delete_sensor: [admin]
  update_location: [admin]
`), 0644)
	if _, err := LoadPolicy(invalid); !errors.Is(err, ErrNotMonotonic) {
		t.Errorf("expected ErrNotMonotonic, got %v", err)
	}

	partial := filepath.Join(dir, "partial.yaml")
	os.WriteFile(partial, []byte("capabilities:\n  view_data: [guest, user, admin]\n"), 0644)
	if _, err := LoadPolicy(partial); !errors.Is(err, ErrCapabilityMissing) {
		t.Errorf("expected ErrCapabilityMissing, got %v", err)
	}

	if p, err := LoadPolicy(""); err != nil || p.HasPermission(RoleUser, AddSensor) {
		t.Errorf("empty path should return built-in table, got %v, %v", p, err)
	}
}
