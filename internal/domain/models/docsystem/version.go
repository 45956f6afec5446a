package docsystem

import "time"

// FileVersion is one content revision of a file. Rows are append-only:
// the only later writes stamp SupersededAt and relocate BlobKey to the
// trash prefix.
type FileVersion struct {
	ID            string     `json:"id" db:"id"`
	FileID        string     `json:"file_id" db:"file_id"`
	VersionNumber int        `json:"version_number" db:"version_number"` // 1-based, never reused
	BlobKey       string     `json:"blob_key" db:"blob_key"`
	Size          int64      `json:"size" db:"size"`
	UploadedBy    string     `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	SupersededAt  *time.Time `json:"superseded_at,omitempty" db:"superseded_at"`
}
