package auth

import (
	"context"
	"slices"

	"docvault/internal/domain"
	"docvault/internal/domain/models/docsystem"
)

// DefaultPrivilegedRoles may purge
var DefaultPrivilegedRoles = []string{"admin", "records_manager"}

// RoleAuthorizer grants privileged operations to actors holding one of a
// configured set of roles
type RoleAuthorizer struct {
	privileged []string
}

// NewRoleAuthorizer creates an authorizer. An empty list falls back to
// DefaultPrivilegedRoles.
func NewRoleAuthorizer(privilegedRoles []string) *RoleAuthorizer {
	if len(privilegedRoles) == 0 {
		privilegedRoles = DefaultPrivilegedRoles
	}
	return &RoleAuthorizer{privileged: slices.Clone(privilegedRoles)}
}

// IsPrivileged reports whether any of roles is privileged
func (a *RoleAuthorizer) IsPrivileged(roles []string) bool {
	for _, r := range roles {
		if slices.Contains(a.privileged, r) {
			return true
		}
	}
	return false
}

// RequirePrivileged implements services.ActorAuthorizer
func (a *RoleAuthorizer) RequirePrivileged(ctx context.Context, actor docsystem.Actor) error {
	if actor.ID == "" {
		return &domain.UnauthorizedError{Message: "no authenticated actor"}
	}
	if !actor.Privileged {
		return &domain.ForbiddenError{Message: "purge requires a privileged role"}
	}
	return nil
}
