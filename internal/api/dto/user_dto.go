package dto

import (
	"regexp"
	"time"

	"github.com/asaskevich/govalidator"
	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/spec-kit/helpdesk/internal/domain"
)

var nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

var phoneRule = v.By(func(value interface{}) error {
	phone, _ := value.(*string)
	if phone == nil || *phone == "" || govalidator.IsE164(*phone) {
		return nil
	}
	return v.NewError("validation_is_e164", "must be an E.164 phone number")
})

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Nickname string  `json:"nickname"`
	FullName *string `json:"full_name"`
}

// Validate implements Validatable.
func (r *RegisterRequest) Validate() error {
	return validateStruct(r,
		v.Field(&r.Email, v.Required, is.EmailFormat),
		v.Field(&r.Password, v.Required, v.RuneLength(8, 128)),
		v.Field(&r.Nickname, v.Required, v.Match(nicknamePattern)),
		v.Field(&r.FullName, v.NilOrNotEmpty, v.RuneLength(1, 120)),
	)
}

// LoginRequest accepts an email address or a nickname.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Validate implements Validatable.
func (r *LoginRequest) Validate() error {
	return validateStruct(r,
		v.Field(&r.Login, v.Required),
		v.Field(&r.Password, v.Required),
	)
}

// UpdateProfileRequest carries self-service profile changes.
type UpdateProfileRequest struct {
	Nickname *string `json:"nickname"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

// Validate implements Validatable.
func (r *UpdateProfileRequest) Validate() error {
	return validateStruct(r,
		v.Field(&r.Nickname, v.NilOrNotEmpty, v.Match(nicknamePattern)),
		v.Field(&r.FullName, v.RuneLength(0, 120)),
		v.Field(&r.Phone, phoneRule),
	)
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileResponse is the public view of a profile.
type ProfileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	FullName  *string   `json:"full_name"`
	Phone     *string   `json:"phone"`
	AvatarURL *string   `json:"avatar_url"`
	IsSupport bool      `json:"is_support"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProfileResponse maps a profile without its password hash.
func NewProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		Email:     p.Email,
		Nickname:  p.Nickname,
		FullName:  p.FullName,
		Phone:     p.Phone,
		AvatarURL: p.AvatarURL,
		IsSupport: p.IsSupport,
		IsAdmin:   p.IsAdmin,
		CreatedAt: p.CreatedAt,
	}
}
