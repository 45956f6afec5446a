package docsystem

import (
	"strings"

	"docvault/internal/config"
	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
)

// pathutils.go - virtual path helpers shared by the folder and lifecycle
// services. Paths are "/"-separated, absolute, and carry no trailing slash.

// NormalizeVirtualPath validates a caller-supplied path and strips a single
// trailing slash.
//
// Examples:
//   - NormalizeVirtualPath("/Docs/Invoices/") → "/Docs/Invoices"
//   - NormalizeVirtualPath("Docs") → ValidationError
func NormalizeVirtualPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") || p == "/" {
		return "", domain.NewValidationError("path must be absolute and name a folder")
	}
	if len(p) > config.MaxVirtualPathLength {
		return "", domain.NewValidationError("path exceeds %d characters", config.MaxVirtualPathLength)
	}
	p = strings.TrimSuffix(p, "/")
	if strings.Contains(p, "//") {
		return "", domain.NewValidationError("path contains an empty segment")
	}
	return p, nil
}

// parentPathOf returns the virtual path of the folder's parent ("" at root).
// Relies on VirtualPath == parent path + "/" + Name.
func parentPathOf(folder *models.Folder) string {
	return strings.TrimSuffix(folder.VirtualPath, "/"+folder.Name)
}
