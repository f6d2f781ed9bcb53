package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/heartline/backend/internal/config"
	"github.com/heartline/backend/internal/models"
	jwtpkg "github.com/heartline/backend/pkg/jwt"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrInvalidToken covers every reason a bearer token does not resolve to a
// live user.
var ErrInvalidToken = errors.New("invalid or expired token")

// IdentityResolver turns a bearer token into a user id.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (uuid.UUID, error)
}

type AuthService struct {
	db    *gorm.DB
	redis *redis.Client
	cfg   *config.Config
}

func NewAuthService(db *gorm.DB, redis *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		db:    db,
		redis: redis,
		cfg:   cfg,
	}
}

// ValidateAccessToken validates an access token and returns claims
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*jwtpkg.Claims, error) {
	claims, err := jwtpkg.ValidateToken(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != jwtpkg.AccessToken {
		return nil, errors.New("invalid token type")
	}

	// If redis is down, we allow the request to proceed
	if s.redis != nil {
		blacklistKey := fmt.Sprintf("blacklist:token:%s", token)
		exists, err := s.redis.Exists(ctx, blacklistKey).Result()
		if err != nil {
			log.WithError(err).Warn("Could not reach Redis to check token blacklist")
		} else if exists > 0 {
			return nil, errors.New("token is blacklisted")
		}
	}

	return claims, nil
}

// ResolveIdentity validates token and requires an active user row behind it.
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalidToken
	}
	claims, err := s.ValidateAccessToken(ctx, token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "is_active").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("%w: unknown user", ErrInvalidToken)
		}
		return uuid.Nil, err
	}
	if !user.IsActive {
		return uuid.Nil, fmt.Errorf("%w: account is deactivated", ErrInvalidToken)
	}
	return user.ID, nil
}

// IssueAccessToken mints an access token for userID.
func (s *AuthService) IssueAccessToken(userID uuid.UUID) (string, error) {
	return jwtpkg.GenerateToken(userID.String(), jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
}
