package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

type stubAuthenticator struct {
	user *models.DirectoryUser
	err  error
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, username, credential string) (*models.DirectoryUser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func newAuthService(auth authenticator) *AuthService {
	return NewAuthService(auth, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "leave-approval-api"})
}

func TestAuthServiceLoginIssuesToken(t *testing.T) {
	svc := newAuthService(&stubAuthenticator{user: &models.DirectoryUser{ID: "u2", Name: "Sarah Leader", Role: models.RoleTeamLeader}})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "sarah", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "Sarah Leader", resp.User.Name)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: "u2", Name: "Sarah Leader", Role: models.RoleTeamLeader}, claims.Identity())
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc := newAuthService(&stubAuthenticator{err: appErrors.ErrInvalidCredentials})
	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "sarah", Password: "bad"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "", Password: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	svc = newAuthService(&stubAuthenticator{err: errors.New("boom")})
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "sarah", Password: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	svc := newAuthService(&stubAuthenticator{})

	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "u1", Role: models.RoleOperator})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	unknownRole := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "u1", Role: "Janitor"})
	signed, err = unknownRole.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
