package authentication

import (
	"backend/lib/services"
	"backend/lib/vault"
	"context"
	"fmt"
	"time"
)

type AuthService struct {
	tokenService TokenService
}

type AuthServiceInterface interface {
	// Token Management
	RefreshUserAccessToken(ctx context.Context, refresh_token string, csrf_token string, cache *services.Cache) (string, time.Time, error)
	RefreshUserTokens(ctx context.Context, refresh_token string, cache *services.Cache) (*TokenPair, error)
	RevokeUserTokens(ctx context.Context, username string, cache *services.Cache) error
	ValidateUserToken(ctx context.Context, access_token string, csrf_token string) (*Claims, error)
	ValidateUserRefreshToken(ctx context.Context, refresh_token string, cache *services.Cache) (*Claims, error)
}

type AuthConfig struct {
	TokenConfig TokenConfig
}

func BuildAuthConfig(vault *vault.VaultManager) (*AuthConfig, error) {
	jwt_key, err := vault.GetJwtKey()
	if err != nil {
		return nil, fmt.Errorf("unavailable jwt_key")
	}

	return &AuthConfig{
		TokenConfig: TokenConfig{
			SigningKey:      jwt_key,
			TokenDuration:   30 * time.Minute,
			RefreshDuration: 7 * 24 * time.Hour, // 7 days
		},
	}, nil
}

func NewAuthService(config *AuthConfig) (*AuthService, error) {
	tokenService := NewJWTTokenService(config.TokenConfig)

	authService := &AuthService{
		tokenService: tokenService,
	}

	return authService, nil
}
