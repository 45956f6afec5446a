package docsystem

import (
	"context"
	"io"

	"docvault/internal/domain/models/docsystem"
)

// BlobStore is the external object storage holding file contents.
// Keys are opaque; this subsystem never inspects content.
type BlobStore interface {
	// Put stores r under key and returns the key it was stored under
	Put(ctx context.Context, key string, r io.Reader, size int64) (string, error)

	// MoveToTrash relocates the object under key to the trash prefix and
	// returns its new key
	MoveToTrash(ctx context.Context, key string) (string, error)

	// RestoreFromTrash moves a trashed object back to the key it had before
	// MoveToTrash and returns that key
	RestoreFromTrash(ctx context.Context, key string) (string, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Open returns a reader for the object. The caller must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// AnchorRegistry is the read-only view of the domain record registry used
// to find files referenced by protected business records
type AnchorRegistry interface {
	// HasProtectedAnchors reports whether any file anchored to a protected
	// category lives in a folder at or under pathPrefix
	HasProtectedAnchors(ctx context.Context, pathPrefix string) (bool, error)
}

// PathCache caches folder lookups by virtual path. Entries are dropped by
// prefix whenever a subtree changes.
type PathCache interface {
	Get(virtualPath string) (*docsystem.Folder, bool)
	Set(virtualPath string, folder *docsystem.Folder)
	// InvalidatePrefix drops prefix itself and every path underneath it
	InvalidatePrefix(prefix string)
}
