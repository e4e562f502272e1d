package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type authUserStoreStub struct {
	user             *models.User
	findByEmailErr   error
	findByIDErr      error
	lastLoginUpdated bool
}

func (m *authUserStoreStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *authUserStoreStub) FindByID(_ context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *authUserStoreStub) UpdateLastLogin(context.Context, string, time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func newAuthService(store authUserStore) *AuthService {
	return NewAuthService(store, validator.New(), zap.NewNop(), AuthConfig{
		Secret:        "secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "campos-api",
	})
}

func activeUser(password string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &models.User{
		ID:           "user-1",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	store := &authUserStoreStub{user: activeUser("password")}
	svc := newAuthService(store)

	res, err := svc.Login(context.Background(), dto.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, int64(3600), res.Tokens.ExpiresIn)
	assert.True(t, store.lastLoginUpdated)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc := newAuthService(&authUserStoreStub{user: activeUser("password")})

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "admin@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc := newAuthService(&authUserStoreStub{})

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "ghost@example.com", Password: "password"})
	require.Error(t, err)
	// Deliberately indistinguishable from a wrong password.
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	user := activeUser("password")
	user.Active = false
	svc := newAuthService(&authUserStoreStub{user: user})

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefresh(t *testing.T) {
	store := &authUserStoreStub{user: activeUser("password")}
	svc := newAuthService(store)

	res, err := svc.Login(context.Background(), dto.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)

	tokens, err := svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestAuthServiceRefreshRejectsAccessToken(t *testing.T) {
	store := &authUserStoreStub{user: activeUser("password")}
	svc := newAuthService(store)

	res, err := svc.Login(context.Background(), dto.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)

	// The audiences differ, so an access token must not refresh a session.
	_, err = svc.Refresh(context.Background(), res.Tokens.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateToken(t *testing.T) {
	store := &authUserStoreStub{user: activeUser("password")}
	svc := newAuthService(store)

	res, err := svc.Login(context.Background(), dto.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceValidateTokenRejectsRefreshToken(t *testing.T) {
	store := &authUserStoreStub{user: activeUser("password")}
	svc := newAuthService(store)

	res, err := svc.Login(context.Background(), dto.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(res.Tokens.RefreshToken)
	require.Error(t, err)
}
