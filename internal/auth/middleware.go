package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const (
	sessionKey = "auth_session"
	profileKey = "auth_profile"
)

// ProfileLookup loads the caller's directory record.
type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

// AuthMiddleware validates bearer tokens and resolves the session once per request.
type AuthMiddleware struct {
	tokens   *TokenManager
	profiles ProfileLookup
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, profiles ProfileLookup) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, profiles: profiles}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return apperrors.NewUnauthorized("missing bearer token")
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	profile, err := m.profiles.GetByID(c.UserContext(), claims.ProfileID())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("profile not found")
		}
		return apperrors.FromRepository(err, "profile")
	}

	c.Locals(profileKey, profile)
	c.Locals(sessionKey, domain.SessionFromProfile(profile))
	return c.Next()
}

// bearerToken reads the Authorization header, falling back to the access_token
// query parameter for EventSource clients that cannot set headers.
func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return c.Query("access_token")
}

// SessionFromContext returns the session resolved by the middleware.
func SessionFromContext(c *fiber.Ctx) (domain.Session, bool) {
	session, ok := c.Locals(sessionKey).(domain.Session)
	return session, ok
}

// ProfileFromContext returns the caller's profile as loaded for this request.
func ProfileFromContext(c *fiber.Ctx) (*domain.Profile, bool) {
	profile, ok := c.Locals(profileKey).(*domain.Profile)
	return profile, ok && profile != nil
}
