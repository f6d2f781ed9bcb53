package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/heartline/backend/internal/config"
	jwtpkg "github.com/heartline/backend/pkg/jwt"
	"github.com/stretchr/testify/require"
)

func newTestAuthService() *AuthService {
	return NewAuthService(nil, nil, &config.Config{JWTSecret: "test-secret", JWTAccessTokenDuration: time.Minute})
}

func TestValidateAccessToken(t *testing.T) {
	s := newTestAuthService()
	userID := uuid.New()

	tok, err := s.IssueAccessToken(userID)
	require.NoError(t, err)

	claims, err := s.ValidateAccessToken(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, userID.String(), claims.UserID)
}

func TestValidateAccessToken_RejectsRefreshToken(t *testing.T) {
	s := newTestAuthService()
	tok, err := jwtpkg.GenerateToken(uuid.NewString(), jwtpkg.RefreshToken, "test-secret", time.Minute)
	require.NoError(t, err)

	_, err = s.ValidateAccessToken(context.Background(), tok)
	require.Error(t, err)
}

func TestResolveIdentity_RejectsBeforeLookup(t *testing.T) {
	s := newTestAuthService()

	_, err := s.ResolveIdentity(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ResolveIdentity(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	tok, err := jwtpkg.GenerateToken("not-a-uuid", jwtpkg.AccessToken, "test-secret", time.Minute)
	require.NoError(t, err)
	_, err = s.ResolveIdentity(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}
