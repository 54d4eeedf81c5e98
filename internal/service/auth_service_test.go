package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk/internal/auth"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func newAuthFixture() (*memStore, *auth.TokenManager, *AuthService) {
	store := newMemStore()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	svc := NewAuthService(AuthDependencies{
		ProfileRepo:  memProfiles{store},
		TokenManager: tokens,
		BcryptCost:   bcrypt.MinCost,
	})
	return store, tokens, svc
}

func TestRegisterAndLogin(t *testing.T) {
	_, tokens, svc := newAuthFixture()

	registered, err := svc.Register(context.Background(), RegisterInput{
		Email:    "alice@example.com",
		Password: "correct horse",
		Nickname: "alice",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", registered.Profile.PasswordHash)
	assert.False(t, registered.Profile.IsSupport)

	claims, err := tokens.ParseToken(registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.Profile.ID, claims.ProfileID())

	for _, identifier := range []string{"alice@example.com", "ALICE", " alice "} {
		loggedIn, err := svc.Login(context.Background(), identifier, "correct horse")
		require.NoError(t, err, identifier)
		assert.Equal(t, registered.Profile.ID, loggedIn.Profile.ID)
	}
}

func TestRegisterRejectsTakenNickname(t *testing.T) {
	_, _, svc := newAuthFixture()
	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "password1", Nickname: "Alice"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{Email: "b@example.com", Password: "password1", Nickname: "alice"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	_, err = svc.Register(context.Background(), RegisterInput{Email: "A@example.com", Password: "password1", Nickname: "bob"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict), "email is unique too")
}

func TestLoginFailuresAreUnauthorized(t *testing.T) {
	_, _, svc := newAuthFixture()
	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "password1", Nickname: "alice"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "alice", "wrong")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauth))

	_, err = svc.Login(context.Background(), "nobody", "password1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauth))
}
