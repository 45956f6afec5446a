// Package storage defines the object key layout shared by the blob store
// backends and an instrumented wrapper around them.
package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrObjectNotFound is returned by Open and MoveToTrash for a missing key
var ErrObjectNotFound = errors.New("object not found")

const (
	// TrashPrefix holds objects displaced by a newer version. They stay
	// until the owning file is purged.
	TrashPrefix = "trash/"

	filesPrefix   = "files/"
	foldersPrefix = "folders"
)

// VersionKey is the object key of one file version. The random suffix keeps
// a retried upload from overwriting an object that is already referenced.
func VersionKey(fileID string, version int, suffix, extension string) string {
	return fmt.Sprintf("%s%s/v%d-%s%s", filesPrefix, fileID, version, suffix, extension)
}

// PlaceholderKey is the marker object that makes a folder visible in object
// listings under the path it was created at. The folder id keeps a later
// folder created at the same path from overwriting it.
func PlaceholderKey(virtualPath, folderID string) string {
	return foldersPrefix + virtualPath + "/" + folderID + ".keep"
}

// TrashKey is where MoveToTrash relocates key
func TrashKey(key string) string {
	if strings.HasPrefix(key, TrashPrefix) {
		return key
	}
	return TrashPrefix + key
}

// UntrashKey is where RestoreFromTrash puts a trashed key back
func UntrashKey(key string) string {
	return strings.TrimPrefix(key, TrashPrefix)
}

// Extension returns the lower-cased extension of name including the dot
func Extension(name string) string {
	return strings.ToLower(path.Ext(name))
}
