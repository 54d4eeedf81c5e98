package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// ProfileUpdate carries the self-service profile fields. Nil leaves a field unchanged.
type ProfileUpdate struct {
	Nickname *string
	FullName *string
	Phone    *string
}

// ProfileService manages the account directory.
type ProfileService struct {
	profiles repository.ProfileRepository
}

// NewProfileService creates service.
func NewProfileService(profiles repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// Me returns the caller's profile.
func (s *ProfileService) Me(ctx context.Context, session domain.Session) (*domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, session.ProfileID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "profile")
	}
	return profile, nil
}

// UpdateMe edits the caller's own profile.
func (s *ProfileService) UpdateMe(ctx context.Context, session domain.Session, update ProfileUpdate) (*domain.Profile, error) {
	profile, err := s.Me(ctx, session)
	if err != nil {
		return nil, err
	}

	if update.Nickname != nil {
		nickname := strings.TrimSpace(*update.Nickname)
		if !strings.EqualFold(nickname, profile.Nickname) {
			existing, err := s.profiles.GetByLogin(ctx, nickname)
			switch {
			case err == nil && existing.ID != profile.ID:
				return nil, apperrors.NewConflict("nickname already taken", map[string]any{"nickname": nickname})
			case err != nil && !errors.Is(err, pgx.ErrNoRows):
				return nil, apperrors.FromRepository(err, "profile")
			}
		}
		profile.Nickname = nickname
	}
	if update.FullName != nil {
		profile.FullName = optionalString(*update.FullName)
	}
	if update.Phone != nil {
		profile.Phone = optionalString(*update.Phone)
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("nickname already taken", nil)
		}
		return nil, apperrors.FromRepository(err, "profile")
	}
	return profile, nil
}

// SetRoles grants or revokes the support and admin roles. Admins only.
func (s *ProfileService) SetRoles(ctx context.Context, session domain.Session, profileID string, isSupport, isAdmin bool) (*domain.Profile, error) {
	if !session.IsAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if profileID == session.ProfileID && !isAdmin {
		return nil, apperrors.NewConflict("admins cannot revoke their own admin role", nil)
	}
	profile, err := s.profiles.SetRoles(ctx, profileID, isSupport, isAdmin)
	if err != nil {
		return nil, apperrors.FromRepository(err, "profile")
	}
	return profile, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
