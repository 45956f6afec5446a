package config

const (
	// MaxFolderNameLength is the maximum length for folder names.
	// Limited to 255 to match common filesystem limits so exported trees
	// stay representable on disk.
	MaxFolderNameLength = 255

	// MaxFileNameLength is the maximum length for original file names.
	// Same as folder names for consistency.
	MaxFileNameLength = 255

	// MaxVirtualPathLength is the maximum length for a folder's full path.
	// Longer paths indicate overly deep hierarchies.
	MaxVirtualPathLength = 2048

	// MaxUploadSize caps a single uploaded version (100 MiB)
	MaxUploadSize = 100 << 20

	// MaxAuditListLimit caps one page of the audit trail
	MaxAuditListLimit = 500
)
