package docsystem

import (
	"time"
)

// FolderState is the lifecycle state of a folder
type FolderState string

const (
	FolderActive  FolderState = "active"
	FolderTrashed FolderState = "trashed"
	FolderPurged  FolderState = "purged" // terminal
)

// Valid reports whether s is a known folder state
func (s FolderState) Valid() bool {
	switch s {
	case FolderActive, FolderTrashed, FolderPurged:
		return true
	}
	return false
}

type Folder struct {
	ID             string      `json:"id" db:"id"`
	ParentID       *string     `json:"parent_id" db:"parent_id"` // NULL = root level
	Name           string      `json:"name" db:"name"`
	VirtualPath    string      `json:"virtual_path" db:"virtual_path"` // Materialized: parent path + "/" + name
	State          FolderState `json:"state" db:"state"`
	PlaceholderKey string      `json:"-" db:"placeholder_key"`
	CreatedBy      string      `json:"created_by" db:"created_by"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
	TrashedBy      *string     `json:"trashed_by,omitempty" db:"trashed_by"`
	TrashedAt      *time.Time  `json:"trashed_at,omitempty" db:"trashed_at"`
	PurgedBy       *string     `json:"purged_by,omitempty" db:"purged_by"`
	PurgedAt       *time.Time  `json:"purged_at,omitempty" db:"purged_at"`
}

// JoinPath builds the virtual path of a child named name under parentPath.
// An empty parentPath means the child sits at the root.
func JoinPath(parentPath, name string) string {
	return parentPath + "/" + name
}

// IsWithin reports whether path is prefix itself or lies underneath it
func IsWithin(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return len(path) > len(prefix) && path[:len(prefix)] == prefix && path[len(prefix)] == '/'
}

// RebasePath replaces the oldPrefix of path with newPrefix, keeping the
// relative suffix. path must satisfy IsWithin(path, oldPrefix).
func RebasePath(path, oldPrefix, newPrefix string) string {
	return newPrefix + path[len(oldPrefix):]
}
