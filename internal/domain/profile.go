package domain

import "time"

// Profile is the directory record for every account, customer or staff.
type Profile struct {
	ID           string
	Email        string
	Nickname     string
	FullName     *string
	Phone        *string
	AvatarURL    *string
	PasswordHash string
	IsSupport    bool
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName returns the nickname, falling back to the email address.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.Email
}
