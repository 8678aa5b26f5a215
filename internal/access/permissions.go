package access

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Roles ordered from least to most privileged.
var Roles = []Role{RoleGuest, RoleUser, RoleAdmin}

type Capability string

const (
	ViewData       Capability = "view_data"
	ViewHistory    Capability = "view_history"
	AddSensor      Capability = "add_sensor"
	DeleteSensor   Capability = "delete_sensor"
	UpdateLocation Capability = "update_location"
)

// Capabilities used anywhere in the interface. The permission table must cover all of them.
var Capabilities = []Capability{ViewData, ViewHistory, AddSensor, DeleteSensor, UpdateLocation}

// Policy maps each capability to the set of roles allowed to use it.
type Policy map[Capability]map[Role]bool

var defaultPolicy = Policy{
	ViewData:       {RoleGuest: true, RoleUser: true, RoleAdmin: true},
	ViewHistory:    {RoleUser: true, RoleAdmin: true},
	AddSensor:      {RoleAdmin: true},
	DeleteSensor:   {RoleAdmin: true},
	UpdateLocation: {RoleAdmin: true},
}

// DefaultPolicy returns a copy of the built-in permission table.
func DefaultPolicy() Policy {
	return defaultPolicy.clone()
}

func (p Policy) clone() Policy {
	out := make(Policy, len(p))
	for capability, roles := range p {
		out[capability] = make(map[Role]bool, len(roles))
		for role, allowed := range roles {
			out[capability][role] = allowed
		}
	}
	return out
}

// HasPermission reports whether role may use capability.
// Unknown capabilities and unknown roles are denied.
func (p Policy) HasPermission(role Role, capability Capability) bool {
	roles, ok := p[capability]
	if !ok {
		slog.Debug("Unknown capability requested", "capability", capability, "role", role)
		return false
	}
	return roles[role]
}

// Allowed lists the capabilities granted to role, in declaration order.
func (p Policy) Allowed(role Role) []Capability {
	var out []Capability
	for _, capability := range Capabilities {
		if p.HasPermission(role, capability) {
			out = append(out, capability)
		}
	}
	return out
}

// Validate checks the table is total over Capabilities, names only known
// roles, and is monotonic: every capability of a role is held by all more
// privileged roles.
func (p Policy) Validate() error {
	for _, capability := range Capabilities {
		if _, ok := p[capability]; !ok {
			return fmt.Errorf("%w: %s", ErrCapabilityMissing, capability)
		}
	}

	for capability, roles := range p {
		if !capability.Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
		}
		for role := range roles {
			if !role.Valid() {
				return fmt.Errorf("%w: %q in %s", ErrUnknownRole, role, capability)
			}
		}

		for i := 0; i < len(Roles)-1; i++ {
			lower, higher := Roles[i], Roles[i+1]
			if roles[lower] && !roles[higher] {
				return fmt.Errorf("%w: %s granted to %s but not %s", ErrNotMonotonic, capability, lower, higher)
			}
		}
	}
	return nil
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

func (c Capability) Valid() bool {
	for _, known := range Capabilities {
		if c == known {
			return true
		}
	}
	return false
}

func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return role, nil
}

func ParseCapability(s string) (Capability, error) {
	capability := Capability(strings.ToLower(strings.TrimSpace(s)))
	if !capability.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, s)
	}
	return capability, nil
}

// RolesFor returns the roles allowed to use capability, least privileged first.
func (p Policy) RolesFor(capability Capability) []Role {
	var out []Role
	for role, allowed := range p[capability] {
		if allowed {
			out = append(out, role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return roleRank(out[i]) < roleRank(out[j]) })
	return out
}

func roleRank(r Role) int {
	for i, known := range Roles {
		if r == known {
			return i
		}
	}
	return len(Roles)
}
