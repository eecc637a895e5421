package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"pairchat/auth"
	"pairchat/domain"
	"pairchat/errors"
	"pairchat/repositories"

	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*AuthService, *auth.TokenManager) {
	t.Helper()
	db, err := repositories.OpenMembershipDB(context.Background(),
		filepath.Join(t.TempDir(), "membership.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens := auth.NewTokenManager("test-secret-do-not-use-in-prod", time.Hour)
	service := NewAuthService(slog.Default(),
		repositories.NewUserRepository(db, slog.Default()), tokens)
	return service, tokens
}

func Test_Register_And_Login(t *testing.T) {
	req := require.New(t)
	service, tokens := newAuthFixture(t)
	ctx := context.Background()

	registered, err := service.Register(ctx, "alice", "ComplexPass123!")
	req.NoError(err)
	req.NotEmpty(registered)

	claims, err := tokens.Validate(string(registered))
	req.NoError(err)

	loggedIn, err := service.Login(ctx, "alice", "ComplexPass123!")
	req.NoError(err)
	loginClaims, err := tokens.Validate(string(loggedIn))
	req.NoError(err)
	req.Equal(claims.UserID, loginClaims.UserID)

	user, err := service.LookupUser(ctx, domain.UserID(claims.UserID))
	req.NoError(err)
	req.Equal("alice", user.Username)
}

func Test_Register_Rejects_Duplicates_And_Weak_Passwords(t *testing.T) {
	req := require.New(t)
	service, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := service.Register(ctx, "alice", "ComplexPass123!")
	req.NoError(err)

	_, err = service.Register(ctx, "alice", "AnotherPass456!")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	_, err = service.Register(ctx, "bob", "weak")
	req.ErrorIs(err, errors.ErrInvalidPassword)

	_, err = service.Register(ctx, "bob", "nouppercaseatall123!")
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func Test_Login_Rejects_Bad_Credentials(t *testing.T) {
	req := require.New(t)
	service, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := service.Register(ctx, "alice", "ComplexPass123!")
	req.NoError(err)

	_, err = service.Login(ctx, "alice", "WrongPass123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	// Unknown usernames fail identically to wrong passwords.
	_, err = service.Login(ctx, "nobody", "ComplexPass123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}
