package auth

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/domain"
	"docvault/internal/domain/models"
)

var testSecret = []byte("test-secret")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims *models.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestHMACVerifier(t *testing.T) {
	v, err := NewHMACVerifier(testSecret, discardLogger())
	require.NoError(t, err)
	defer v.Close()

	valid := &models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"admin"},
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", signToken(t, jwt.SigningMethodHS256, testSecret, valid), false},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("other"), valid), true},
		{"wrong algorithm", signToken(t, jwt.SigningMethodHS512, testSecret, valid), true},
		{"expired", signToken(t, jwt.SigningMethodHS256, testSecret, &models.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}), true},
		{"missing subject", signToken(t, jwt.SigningMethodHS256, testSecret, &models.Claims{}), true},
		{"garbage", "not-a-token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.VerifyToken(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", claims.GetUserID())
			assert.Equal(t, []string{"admin"}, claims.AllRoles())
		})
	}
}

func TestNewHMACVerifierRequiresSecret(t *testing.T) {
	_, err := NewHMACVerifier(nil, discardLogger())
	assert.Error(t, err)
}

func TestClaimsAllRoles(t *testing.T) {
	c := &models.Claims{Role: "admin", Roles: []string{"viewer", "admin"}}
	assert.Equal(t, []string{"viewer", "admin"}, c.AllRoles())

	c = &models.Claims{Role: "editor"}
	assert.Equal(t, []string{"editor"}, c.AllRoles())
}
