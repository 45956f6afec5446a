package docsystem

import (
	"context"
	"slices"

	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
)

// ProtectedAnchorRegistry answers anchor queries from the file table: a file
// is anchored when its owner context is one of the protected categories
// whose business records point at it by folder path
type ProtectedAnchorRegistry struct {
	fileRepo docsysRepo.FileRepository
	contexts []models.OwnerContext
}

// NewProtectedAnchorRegistry creates a registry. An empty contexts list falls
// back to models.DefaultProtectedContexts.
func NewProtectedAnchorRegistry(fileRepo docsysRepo.FileRepository, contexts []models.OwnerContext) *ProtectedAnchorRegistry {
	if len(contexts) == 0 {
		contexts = models.DefaultProtectedContexts
	}
	return &ProtectedAnchorRegistry{
		fileRepo: fileRepo,
		contexts: slices.Clone(contexts),
	}
}

// HasProtectedAnchors reports whether a non-purged protected file sits at or
// under pathPrefix
func (r *ProtectedAnchorRegistry) HasProtectedAnchors(ctx context.Context, pathPrefix string) (bool, error) {
	return r.fileRepo.ExistsWithContextUnder(ctx, pathPrefix, r.contexts)
}
