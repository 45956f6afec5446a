package docsystem

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuditAction identifies the mutation an audit event records
type AuditAction string

const (
	ActionCreated         AuditAction = "created"
	ActionRenamed         AuditAction = "renamed"
	ActionMoved           AuditAction = "moved"
	ActionTrashed         AuditAction = "trashed"
	ActionRestored        AuditAction = "restored"
	ActionPurged          AuditAction = "purged"
	ActionVersionUploaded AuditAction = "version_uploaded"
	ActionVersionRestored AuditAction = "version_restored"
	ActionDownloaded      AuditAction = "downloaded"
)

// Valid reports whether a is a known action
func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreated, ActionRenamed, ActionMoved, ActionTrashed, ActionRestored,
		ActionPurged, ActionVersionUploaded, ActionVersionRestored, ActionDownloaded:
		return true
	}
	return false
}

// AuditEvent is an immutable record of one mutation. References are weak:
// the referenced folder, file or version may since have been purged.
type AuditEvent struct {
	ID         string      `json:"id"`
	FileID     *string     `json:"file_id,omitempty"`
	FolderID   *string     `json:"folder_id,omitempty"`
	VersionID  *string     `json:"version_id,omitempty"`
	Action     AuditAction `json:"action"`
	ActorID    string      `json:"actor_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	ClientIP   string      `json:"client_ip"`
	UserAgent  string      `json:"user_agent"`
	Detail     AuditDetail `json:"detail"`
}

// AuditDetail is the action-specific payload of an audit event. Each action
// has exactly one detail type; Action() returns the tag.
type AuditDetail interface {
	Action() AuditAction
}

// CreatedDetail describes a created folder or file
type CreatedDetail struct {
	Name         string       `json:"name"`
	VirtualPath  string       `json:"virtual_path,omitempty"`
	ParentID     *string      `json:"parent_id,omitempty"`
	OwnerContext OwnerContext `json:"owner_context,omitempty"`
	BlobKey      string       `json:"blob_key,omitempty"`
	Size         int64        `json:"size,omitempty"`
	Replaces     *string      `json:"replaces,omitempty"` // file superseded by this one
}

// RenamedDetail describes a folder rename and its subtree rewrite
type RenamedDetail struct {
	OldName          string `json:"old_name"`
	NewName          string `json:"new_name"`
	OldPath          string `json:"old_path"`
	NewPath          string `json:"new_path"`
	RewrittenFolders int64  `json:"rewritten_folders"`
}

// MovedDetail describes a folder move and its subtree rewrite
type MovedDetail struct {
	OldParentID      *string `json:"old_parent_id"`
	NewParentID      *string `json:"new_parent_id"`
	OldPath          string  `json:"old_path"`
	NewPath          string  `json:"new_path"`
	RewrittenFolders int64   `json:"rewritten_folders"`
}

// TrashedDetail describes a trashed folder subtree or file
type TrashedDetail struct {
	VirtualPath     string `json:"virtual_path,omitempty"`
	AffectedFolders int64  `json:"affected_folders,omitempty"`
}

// RestoredDetail describes a restored folder subtree or file
type RestoredDetail struct {
	OldPath         string `json:"old_path,omitempty"`
	NewPath         string `json:"new_path,omitempty"`
	RestoredToRoot  bool   `json:"restored_to_root"`
	AffectedFolders int64  `json:"affected_folders,omitempty"`
}

// PurgedDetail describes an irreversible purge
type PurgedDetail struct {
	VirtualPath    string `json:"virtual_path,omitempty"`
	PurgedFolders  int64  `json:"purged_folders,omitempty"`
	PurgedFiles    int64  `json:"purged_files"`
	DeletedObjects int    `json:"deleted_objects"`
}

// SupersededObject is the previous current version displaced by an upload
type SupersededObject struct {
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	BlobKey       string `json:"blob_key"`
	Reason        string `json:"reason"` // always "substitution"
}

// VersionUploadedDetail describes a new content revision
type VersionUploadedDetail struct {
	VersionNumber int               `json:"version_number"`
	BlobKey       string            `json:"blob_key"`
	Size          int64             `json:"size"`
	Superseded    *SupersededObject `json:"superseded,omitempty"`
}

// VersionRestoredDetail describes a current-pointer change back to an older version
type VersionRestoredDetail struct {
	FromVersion int    `json:"from_version"`
	ToVersion   int    `json:"to_version"`
	BlobKey     string `json:"blob_key"`
}

// DownloadedDetail describes a content read
type DownloadedDetail struct {
	VersionNumber int    `json:"version_number"`
	BlobKey       string `json:"blob_key"`
}

func (CreatedDetail) Action() AuditAction         { return ActionCreated }
func (RenamedDetail) Action() AuditAction         { return ActionRenamed }
func (MovedDetail) Action() AuditAction           { return ActionMoved }
func (TrashedDetail) Action() AuditAction         { return ActionTrashed }
func (RestoredDetail) Action() AuditAction        { return ActionRestored }
func (PurgedDetail) Action() AuditAction          { return ActionPurged }
func (VersionUploadedDetail) Action() AuditAction { return ActionVersionUploaded }
func (VersionRestoredDetail) Action() AuditAction { return ActionVersionRestored }
func (DownloadedDetail) Action() AuditAction      { return ActionDownloaded }

// EncodeAuditDetail serializes a detail for storage. A nil detail encodes as
// an empty JSON object.
func EncodeAuditDetail(d AuditDetail) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// DecodeAuditDetail rebuilds the concrete detail type for action from raw JSON
func DecodeAuditDetail(action AuditAction, raw []byte) (AuditDetail, error) {
	var d AuditDetail
	switch action {
	case ActionCreated:
		d = &CreatedDetail{}
	case ActionRenamed:
		d = &RenamedDetail{}
	case ActionMoved:
		d = &MovedDetail{}
	case ActionTrashed:
		d = &TrashedDetail{}
	case ActionRestored:
		d = &RestoredDetail{}
	case ActionPurged:
		d = &PurgedDetail{}
	case ActionVersionUploaded:
		d = &VersionUploadedDetail{}
	case ActionVersionRestored:
		d = &VersionRestoredDetail{}
	case ActionDownloaded:
		d = &DownloadedDetail{}
	default:
		return nil, fmt.Errorf("unknown audit action %q", action)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, d); err != nil {
			return nil, fmt.Errorf("decode %s detail: %w", action, err)
		}
	}
	return d, nil
}
