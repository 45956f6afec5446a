package models

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT claim set accepted by the API.
// Roles may arrive as a top-level "roles" array or a single "role" string.
type Claims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string   `json:"email"`
	Name                 string   `json:"name"`
	Role                 string   `json:"role"`
	Roles                []string `json:"roles"`
}

// GetUserID returns the user ID from the JWT subject claim
func (c *Claims) GetUserID() string {
	return c.Subject
}

// AllRoles merges Role and Roles without duplicates
func (c *Claims) AllRoles() []string {
	roles := slices.Clone(c.Roles)
	if c.Role != "" && !slices.Contains(roles, c.Role) {
		roles = append(roles, c.Role)
	}
	return roles
}
