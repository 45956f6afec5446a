package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
)

// TokenVerifier implements JWTVerifier with either a JWKS endpoint
// (RS256/ES256) or a shared HMAC secret (HS256)
type TokenVerifier struct {
	keyfunc jwt.Keyfunc
	methods []string
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// NewJWKSVerifier creates a verifier that fetches public keys from jwksURL.
// Keys are cached and refreshed in the background by keyfunc.
func NewJWKSVerifier(jwksURL string, logger *slog.Logger) (*TokenVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)

	return &TokenVerifier{
		keyfunc: jwks.Keyfunc,
		methods: []string{"RS256", "ES256"},
		cancel:  cancel,
		logger:  logger,
	}, nil
}

// NewHMACVerifier creates a verifier for HS256 tokens signed with secret
func NewHMACVerifier(secret []byte, logger *slog.Logger) (*TokenVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("JWT secret cannot be empty")
	}

	logger.Info("JWT verifier initialized", "mode", "hmac")

	return &TokenVerifier{
		keyfunc: func(*jwt.Token) (any, error) { return secret, nil },
		methods: []string{"HS256"},
		logger:  logger,
	}, nil
}

// VerifyToken validates a token and extracts its claims
func (v *TokenVerifier) VerifyToken(tokenString string) (*models.Claims, error) {
	// WithValidMethods rejects algorithm confusion before the key is used
	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, v.keyfunc, jwt.WithValidMethods(v.methods))
	if err != nil {
		v.logger.Debug("token parse failed", "error", err)
		return nil, &domain.UnauthorizedError{Message: "invalid token"}
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok || !token.Valid {
		return nil, &domain.UnauthorizedError{Message: "invalid token"}
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, &domain.UnauthorizedError{Message: "token has no subject"}
	}

	return claims, nil
}

// Close stops the background JWKS refresh
func (v *TokenVerifier) Close() error {
	if v.cancel != nil {
		v.cancel()
	}
	v.logger.Info("JWT verifier closed")
	return nil
}
