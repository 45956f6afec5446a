package docsystem

import (
	"context"
	"time"

	"docvault/internal/domain/models/docsystem"
)

// TreeLockMode selects how LockTree serializes against other tree mutations
type TreeLockMode int

const (
	// TreeLockShared is taken by mutations that depend on a folder staying
	// put (creating or restoring a file inside it)
	TreeLockShared TreeLockMode = iota
	// TreeLockExclusive is taken by mutations that change folder placement
	// or state (create, rename, move, trash, restore, purge)
	TreeLockExclusive
)

// FolderRepository defines data access operations for folders.
// Methods named *ForUpdate take an exclusive row lock and must run inside
// a transaction.
type FolderRepository interface {
	// Create inserts a folder. Returns a ConflictError when a non-purged
	// sibling with the same name exists.
	Create(ctx context.Context, folder *docsystem.Folder) error

	// GetByID retrieves a folder by ID in any state
	GetByID(ctx context.Context, id string) (*docsystem.Folder, error)

	// LockTree serializes structural tree mutations for the rest of the
	// enclosing transaction. It must be the first lock the transaction
	// takes.
	LockTree(ctx context.Context, mode TreeLockMode) error

	// GetByIDForUpdate retrieves and locks a folder row
	GetByIDForUpdate(ctx context.Context, id string) (*docsystem.Folder, error)

	// GetByPath retrieves the non-purged folder at a virtual path
	GetByPath(ctx context.Context, virtualPath string) (*docsystem.Folder, error)

	// FindSibling returns the non-purged folder named name under parentID,
	// ignoring excludeID. Returns nil, nil when there is none.
	FindSibling(ctx context.Context, parentID *string, name, excludeID string) (*docsystem.Folder, error)

	// ListChildren lists immediate child folders in the given state
	ListChildren(ctx context.Context, parentID *string, state docsystem.FolderState) ([]docsystem.Folder, error)

	// ListByState lists every folder in the given state (flat)
	ListByState(ctx context.Context, state docsystem.FolderState) ([]docsystem.Folder, error)

	// ListSubtree lists the non-purged folders at or under virtualPath
	ListSubtree(ctx context.Context, virtualPath string) ([]docsystem.Folder, error)

	// DescendantIDs returns the ids of id and all its transitive children,
	// following parent_id edges
	DescendantIDs(ctx context.Context, id string) ([]string, error)

	// UpdatePlacement writes name, parent_id and updated_at of one folder
	UpdatePlacement(ctx context.Context, folder *docsystem.Folder) error

	// RewriteSubtreePath replaces oldPath with newPath as the prefix of every
	// non-purged folder at or under oldPath, in one statement. Returns the
	// number of rewritten rows.
	RewriteSubtreePath(ctx context.Context, oldPath, newPath string, at time.Time) (int64, error)

	// TrashSubtree moves active folders at or under virtualPath to trashed
	TrashSubtree(ctx context.Context, virtualPath, actorID string, at time.Time) (int64, error)

	// RestoreSubtree moves trashed folders at or under virtualPath to active
	RestoreSubtree(ctx context.Context, virtualPath string, at time.Time) (int64, error)

	// PurgeSubtree moves every non-purged folder at or under virtualPath to purged.
	// Files must be purged first: PurgeInSubtree matches on non-purged folders.
	PurgeSubtree(ctx context.Context, virtualPath, actorID string, at time.Time) (int64, error)
}
