package docsystem

import (
	"time"
)

// FileState is the lifecycle state of a file record
type FileState string

const (
	FileActive     FileState = "active"
	FileSuperseded FileState = "superseded" // replaced by another file, kept for history
	FileTrashed    FileState = "trashed"
	FilePurged     FileState = "purged" // terminal
)

// Valid reports whether s is a known file state
func (s FileState) Valid() bool {
	switch s {
	case FileActive, FileSuperseded, FileTrashed, FilePurged:
		return true
	}
	return false
}

// OwnerContext tags which external domain record a file belongs to
type OwnerContext string

const (
	ContextGeneral           OwnerContext = "general"
	ContextSignature         OwnerContext = "signature"
	ContextExpenseInvoice    OwnerContext = "expense_invoice"
	ContextPaymentReceipt    OwnerContext = "payment_receipt"
	ContextReceivableDeposit OwnerContext = "receivable_deposit"
	ContextQuotation         OwnerContext = "quotation"
	ContextPaymentRequest    OwnerContext = "payment_request"
)

// DefaultProtectedContexts are the categories whose files are referenced by
// external financial records through their folder path.
var DefaultProtectedContexts = []OwnerContext{
	ContextSignature,
	ContextExpenseInvoice,
	ContextPaymentReceipt,
	ContextReceivableDeposit,
}

// Valid reports whether c is a known owner context
func (c OwnerContext) Valid() bool {
	switch c {
	case ContextGeneral, ContextSignature, ContextExpenseInvoice, ContextPaymentReceipt,
		ContextReceivableDeposit, ContextQuotation, ContextPaymentRequest:
		return true
	}
	return false
}

type File struct {
	ID             string       `json:"id" db:"id"`
	OwnerContext   OwnerContext `json:"owner_context" db:"owner_context"`
	FolderID       *string      `json:"folder_id" db:"folder_id"` // NULL = general repository root
	OriginalName   string       `json:"original_name" db:"original_name"`
	Extension      string       `json:"extension" db:"extension"`
	Size           int64        `json:"size" db:"size"`
	CurrentBlobKey string       `json:"-" db:"current_blob_key"`
	CurrentVersion int          `json:"current_version" db:"current_version"`
	State          FileState    `json:"state" db:"state"`
	ReplacedByID   *string      `json:"replaced_by_id,omitempty" db:"replaced_by_id"`
	UploadedBy     string       `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
	TrashedBy      *string      `json:"trashed_by,omitempty" db:"trashed_by"`
	TrashedAt      *time.Time   `json:"trashed_at,omitempty" db:"trashed_at"`
	PurgedBy       *string      `json:"purged_by,omitempty" db:"purged_by"`
	PurgedAt       *time.Time   `json:"purged_at,omitempty" db:"purged_at"`
}
