package access

// Session describes who is looking at the dashboard. The zero value is a guest.
type Session struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

func GuestSession() Session {
	return Session{Role: RoleGuest}
}

func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// EffectiveRole returns the role used for permission checks. A logged in
// session without a stored role is a user; a stored role, guest included,
// is kept.
func (s Session) EffectiveRole() Role {
	if !s.Authenticated() {
		return RoleGuest
	}
	if s.Role == "" {
		return RoleUser
	}
	return s.Role
}

func (s Session) Can(p Policy, capability Capability) bool {
	return p.HasPermission(s.EffectiveRole(), capability)
}
