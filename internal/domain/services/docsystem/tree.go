package docsystem

import (
	"context"

	"docvault/internal/domain/models/docsystem"
)

// TreeService defines operations for building the repository tree
type TreeService interface {
	// GetTree builds the nested tree of active folders and files
	GetTree(ctx context.Context) (*docsystem.TreeNode, error)
}
