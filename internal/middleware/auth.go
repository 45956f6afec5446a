package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"docvault/internal/auth"
	"docvault/internal/domain/models/docsystem"
	"docvault/internal/httputil"
)

// RoleChecker decides whether a set of token roles grants privileged access
type RoleChecker interface {
	IsPrivileged(roles []string) bool
}

// AuthMiddleware verifies the bearer token and puts the resulting Actor in
// the request context. Requests without a valid token get 401.
func AuthMiddleware(verifier auth.JWTVerifier, roles RoleChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.RespondError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("token rejected",
					"error", err,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			actor := docsystem.Actor{
				ID:         claims.GetUserID(),
				Privileged: roles.IsPrivileged(claims.AllRoles()),
				ClientIP:   httputil.ClientIP(r),
				UserAgent:  r.UserAgent(),
			}
			next.ServeHTTP(w, httputil.WithActor(r, actor))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
