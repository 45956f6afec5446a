// Package memory is an in-process implementation of the docsystem
// repositories. It backs local development and the service tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	models "docvault/internal/domain/models/docsystem"
	"docvault/internal/domain/repositories"
)

// Store holds every table in maps guarded by one mutex.
//
// Transactions are serialized by txMu and made atomic by snapshotting the
// maps on begin and restoring them on failure. Reads outside a transaction
// may observe uncommitted writes of a running one; the service layer reads
// state it depends on inside its own transaction.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	folders  map[string]*models.Folder
	files    map[string]*models.File
	versions map[string]*models.FileVersion
	audit    []models.AuditEvent

	// beforeCommit, when set, runs after the transaction body succeeded.
	// A non-nil error rolls the transaction back as a failed commit would.
	beforeCommit func(ctx context.Context) error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		folders:  make(map[string]*models.Folder),
		files:    make(map[string]*models.File),
		versions: make(map[string]*models.FileVersion),
	}
}

// SetCommitHook installs a function run right before each outermost
// transaction commits. Tests use it to simulate commit failures.
func (s *Store) SetCommitHook(fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = fn
}

type snapshot struct {
	folders  map[string]*models.Folder
	files    map[string]*models.File
	versions map[string]*models.FileVersion
	audit    []models.AuditEvent
}

// snapshot deep-copies the tables. Caller holds mu.
func (s *Store) snapshot() snapshot {
	snap := snapshot{
		folders:  make(map[string]*models.Folder, len(s.folders)),
		files:    make(map[string]*models.File, len(s.files)),
		versions: make(map[string]*models.FileVersion, len(s.versions)),
		audit:    append([]models.AuditEvent(nil), s.audit...),
	}
	for id, f := range s.folders {
		snap.folders[id] = cloneFolder(f)
	}
	for id, f := range s.files {
		snap.files[id] = cloneFile(f)
	}
	for id, v := range s.versions {
		snap.versions[id] = cloneVersion(v)
	}
	return snap
}

// restore replaces the tables with snap. Caller holds mu.
func (s *Store) restore(snap snapshot) {
	s.folders = snap.folders
	s.files = snap.files
	s.versions = snap.versions
	s.audit = snap.audit
}

type txMarkerKey struct{}

// TransactionManager runs functions against a Store atomically
type TransactionManager struct {
	store *Store
}

// NewTransactionManager creates a transaction manager over store
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// ExecTx runs fn with all-or-nothing effect on the store. A context that is
// already inside a transaction joins it.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if ctx.Value(txMarkerKey{}) != nil {
		return fn(ctx)
	}

	s := tm.store
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.snapshot()
	hook := s.beforeCommit
	s.mu.RUnlock()

	rollback := func() {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
	}

	txCtx := context.WithValue(ctx, txMarkerKey{}, true)
	if err := fn(txCtx); err != nil {
		rollback()
		return err
	}

	if err := ctx.Err(); err != nil {
		rollback()
		return fmt.Errorf("commit transaction: %w", err)
	}
	if hook != nil {
		if err := hook(ctx); err != nil {
			rollback()
			return fmt.Errorf("commit transaction: %w", err)
		}
	}
	return nil
}

// AuditEvents returns a copy of every recorded event in insertion order
func (s *Store) AuditEvents() []models.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditEvent(nil), s.audit...)
}

// Stats reports row counts per table
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"folders":  len(s.folders),
		"files":    len(s.files),
		"versions": len(s.versions),
		"audit":    len(s.audit),
	}
}

func cloneFolder(f *models.Folder) *models.Folder {
	c := *f
	c.ParentID = cloneString(f.ParentID)
	c.TrashedBy = cloneString(f.TrashedBy)
	c.PurgedBy = cloneString(f.PurgedBy)
	if f.TrashedAt != nil {
		t := *f.TrashedAt
		c.TrashedAt = &t
	}
	if f.PurgedAt != nil {
		t := *f.PurgedAt
		c.PurgedAt = &t
	}
	return &c
}

func cloneFile(f *models.File) *models.File {
	c := *f
	c.FolderID = cloneString(f.FolderID)
	c.ReplacedByID = cloneString(f.ReplacedByID)
	c.TrashedBy = cloneString(f.TrashedBy)
	c.PurgedBy = cloneString(f.PurgedBy)
	if f.TrashedAt != nil {
		t := *f.TrashedAt
		c.TrashedAt = &t
	}
	if f.PurgedAt != nil {
		t := *f.PurgedAt
		c.PurgedAt = &t
	}
	return &c
}

func cloneVersion(v *models.FileVersion) *models.FileVersion {
	c := *v
	if v.SupersededAt != nil {
		t := *v.SupersededAt
		c.SupersededAt = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
