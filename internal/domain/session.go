package domain

// Session is the authenticated caller, resolved once per request and passed
// explicitly to every lifecycle and handoff operation.
type Session struct {
	ProfileID string
	Nickname  string
	IsSupport bool
	IsAdmin   bool
}

// Staff reports whether the caller acts for the support organisation.
func (s Session) Staff() bool {
	return s.IsSupport || s.IsAdmin
}

// SessionFromProfile builds a session from a freshly loaded profile.
func SessionFromProfile(p *Profile) Session {
	if p == nil {
		return Session{}
	}
	return Session{
		ProfileID: p.ID,
		Nickname:  p.Nickname,
		IsSupport: p.IsSupport,
		IsAdmin:   p.IsAdmin,
	}
}
