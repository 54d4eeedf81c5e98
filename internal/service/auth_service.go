package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// RegisterInput describes a new account.
type RegisterInput struct {
	Email    string
	Password string
	Nickname string
	FullName *string
}

// AuthResult is a profile with a freshly issued access token.
type AuthResult struct {
	Profile   *domain.Profile
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	profiles   repository.ProfileRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	ProfileRepo  repository.ProfileRepository
	TokenManager *auth.TokenManager
	BcryptCost   int
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		profiles:   deps.ProfileRepo,
		tokenMgr:   deps.TokenManager,
		bcryptCost: deps.BcryptCost,
	}
}

// Register creates a customer account. Email and nickname are unique, case-insensitively.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(input.Email)
	nickname := strings.TrimSpace(input.Nickname)

	if _, err := s.profiles.GetByLogin(ctx, nickname); err == nil {
		return nil, apperrors.NewConflict("nickname already taken", map[string]any{"nickname": nickname})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.FromRepository(err, "profile")
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	profile := &domain.Profile{
		Email:        email,
		Nickname:     nickname,
		FullName:     input.FullName,
		PasswordHash: hash,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("email or nickname already registered", nil)
		}
		return nil, apperrors.FromRepository(err, "profile")
	}
	return s.issue(profile)
}

// Login authenticates by email or nickname.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	profile, err := s.profiles.GetByLogin(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.FromRepository(err, "profile")
	}
	if err := auth.ComparePassword(profile.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(profile)
}

func (s *AuthService) issue(profile *domain.Profile) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(profile.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{Profile: profile, Token: token, ExpiresAt: exp}, nil
}
