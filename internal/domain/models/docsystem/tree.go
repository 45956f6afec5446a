package docsystem

import "time"

// TreeNode represents the root of the repository tree
type TreeNode struct {
	Folders []*FolderTreeNode `json:"folders"`
	Files   []FileTreeNode    `json:"files"`
}

// FolderTreeNode represents a folder in the tree with nested children
type FolderTreeNode struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ParentID    *string           `json:"parent_id"`
	VirtualPath string            `json:"virtual_path"`
	CreatedAt   time.Time         `json:"created_at"`
	Folders     []*FolderTreeNode `json:"folders"` // Pointers for proper nesting
	Files       []FileTreeNode    `json:"files"`
}

// FileTreeNode represents a file in the tree (metadata only)
type FileTreeNode struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	FolderID       *string      `json:"folder_id"`
	OwnerContext   OwnerContext `json:"owner_context"`
	CurrentVersion int          `json:"current_version"`
	Size           int64        `json:"size"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
