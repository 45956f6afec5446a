package services

import (
	"context"

	"docvault/internal/domain/models/docsystem"
)

// ActorAuthorizer is the authorization gate consulted before privileged
// operations. Services call it before touching any store.
type ActorAuthorizer interface {
	// RequirePrivileged returns a ForbiddenError unless actor may perform
	// destructive operations (purge)
	RequirePrivileged(ctx context.Context, actor docsystem.Actor) error
}
