package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	"docvault/internal/domain/repositories"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	"docvault/internal/repository/postgres"
)

const folderColumns = `id, parent_id, name, virtual_path, state, placeholder_key,
	created_by, created_at, updated_at, trashed_by, trashed_at, purged_by, purged_at`

// subtreeMatch selects rows whose virtual_path is $1 or lies under it.
// $2 must be postgres.EscapeLike($1) + "/%".
const subtreeMatch = `(virtual_path = $1 OR virtual_path LIKE $2 ESCAPE '\')`

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *postgres.RepositoryConfig) docsysRepo.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a folder
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, name, virtual_path, state, placeholder_key, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		folder.ID,
		folder.ParentID,
		folder.Name,
		folder.VirtualPath,
		folder.State,
		folder.PlaceholderKey,
		folder.CreatedBy,
		folder.CreatedAt,
		folder.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return r.siblingConflict(ctx, folder.ParentID, folder.Name)
		}
		if postgres.IsPgForeignKeyError(err) {
			return &domain.NotFoundError{ResourceType: "folder", ResourceID: deref(folder.ParentID)}
		}
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, folderColumns, r.tables.Folders)
	return r.getOne(ctx, query, "folder", id, id)
}

// LockTree takes a transaction-scoped advisory lock keyed on the folders
// table, so every table prefix gets its own tree lock. Row locks alone do
// not cover a subtree rewrite racing an insert or move under one of the
// rewritten folders.
func (r *PostgresFolderRepository) LockTree(ctx context.Context, mode docsysRepo.TreeLockMode) error {
	if repositories.GetTx(ctx) == nil {
		return fmt.Errorf("lock tree: no transaction in context")
	}

	fn := "pg_advisory_xact_lock_shared"
	if mode == docsysRepo.TreeLockExclusive {
		fn = "pg_advisory_xact_lock"
	}
	query := fmt.Sprintf(`SELECT %s(hashtext($1))`, fn)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, r.tables.Folders); err != nil {
		return fmt.Errorf("lock tree: %w", err)
	}
	return nil
}

// GetByIDForUpdate retrieves a folder and locks its row until the
// surrounding transaction ends
func (r *PostgresFolderRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, folderColumns, r.tables.Folders)
	return r.getOne(ctx, query, "folder", id, id)
}

// GetByPath retrieves the non-purged folder at a virtual path
func (r *PostgresFolderRepository) GetByPath(ctx context.Context, virtualPath string) (*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE virtual_path = $1 AND state <> 'purged'
		LIMIT 1
	`, folderColumns, r.tables.Folders)
	return r.getOne(ctx, query, "folder", virtualPath, virtualPath)
}

// FindSibling returns the non-purged folder with the same parent and name
func (r *PostgresFolderRepository) FindSibling(ctx context.Context, parentID *string, name, excludeID string) (*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id IS NOT DISTINCT FROM $1::text
		  AND name = $2
		  AND state <> 'purged'
		  AND id <> $3
		LIMIT 1
	`, folderColumns, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, parentID, name, excludeID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find sibling folder: %w", err)
	}
	return folder, nil
}

// ListChildren lists immediate child folders in the given state
func (r *PostgresFolderRepository) ListChildren(ctx context.Context, parentID *string, state models.FolderState) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id IS NOT DISTINCT FROM $1::text AND state = $2
		ORDER BY name ASC
	`, folderColumns, r.tables.Folders)
	return r.list(ctx, query, parentID, state)
}

// ListByState lists every folder in the given state ordered by path
func (r *PostgresFolderRepository) ListByState(ctx context.Context, state models.FolderState) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE state = $1
		ORDER BY virtual_path ASC
	`, folderColumns, r.tables.Folders)
	return r.list(ctx, query, state)
}

// ListSubtree lists the non-purged folders at or under virtualPath
func (r *PostgresFolderRepository) ListSubtree(ctx context.Context, virtualPath string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE state <> 'purged' AND %s
		ORDER BY virtual_path ASC
	`, folderColumns, r.tables.Folders, subtreeMatch)
	return r.list(ctx, query, virtualPath, descendantPattern(virtualPath))
}

// DescendantIDs walks parent_id edges from id. UNION (not UNION ALL) stops
// the walk if the data ever contains a cycle.
func (r *PostgresFolderRepository) DescendantIDs(ctx context.Context, id string) ([]string, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT id FROM %[1]s WHERE id = $1
			UNION
			SELECT f.id FROM %[1]s f JOIN subtree s ON f.parent_id = s.id
		)
		SELECT id FROM subtree
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query descendants: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect descendants: %w", err)
	}
	return ids, nil
}

// UpdatePlacement writes name, parent and updated_at of one folder
func (r *PostgresFolderRepository) UpdatePlacement(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, name = $2, updated_at = $3
		WHERE id = $4
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, folder.ParentID, folder.Name, folder.UpdatedAt, folder.ID)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return r.siblingConflict(ctx, folder.ParentID, folder.Name)
		}
		return fmt.Errorf("update folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{ResourceType: "folder", ResourceID: folder.ID}
	}
	return nil
}

// RewriteSubtreePath swaps the oldPath prefix for newPath on every
// non-purged folder of the subtree in a single statement
func (r *PostgresFolderRepository) RewriteSubtreePath(ctx context.Context, oldPath, newPath string, at time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET virtual_path = $3 || substr(virtual_path, char_length($1) + 1),
		    updated_at = $4
		WHERE state <> 'purged' AND %s
	`, r.tables.Folders, subtreeMatch)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, oldPath, descendantPattern(oldPath), newPath, at)
	if err != nil {
		return 0, fmt.Errorf("rewrite subtree paths: %w", err)
	}
	return result.RowsAffected(), nil
}

// TrashSubtree moves active folders at or under virtualPath to trashed
func (r *PostgresFolderRepository) TrashSubtree(ctx context.Context, virtualPath, actorID string, at time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET state = 'trashed', trashed_by = $3, trashed_at = $4, updated_at = $4
		WHERE state = 'active' AND %s
	`, r.tables.Folders, subtreeMatch)
	return r.exec(ctx, "trash subtree", query, virtualPath, descendantPattern(virtualPath), actorID, at)
}

// RestoreSubtree moves trashed folders at or under virtualPath to active
func (r *PostgresFolderRepository) RestoreSubtree(ctx context.Context, virtualPath string, at time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET state = 'active', trashed_by = NULL, trashed_at = NULL, updated_at = $3
		WHERE state = 'trashed' AND %s
	`, r.tables.Folders, subtreeMatch)
	return r.exec(ctx, "restore subtree", query, virtualPath, descendantPattern(virtualPath), at)
}

// PurgeSubtree moves every non-purged folder at or under virtualPath to purged
func (r *PostgresFolderRepository) PurgeSubtree(ctx context.Context, virtualPath, actorID string, at time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET state = 'purged', purged_by = $3, purged_at = $4, updated_at = $4
		WHERE state <> 'purged' AND %s
	`, r.tables.Folders, subtreeMatch)
	return r.exec(ctx, "purge subtree", query, virtualPath, descendantPattern(virtualPath), actorID, at)
}

func (r *PostgresFolderRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresFolderRepository) getOne(ctx context.Context, query, resourceType, resourceID string, args ...any) (*models.Folder, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

func (r *PostgresFolderRepository) list(ctx context.Context, query string, args ...any) ([]models.Folder, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

// siblingConflict builds the ConflictError for a taken sibling name,
// pointing at the folder that holds it
func (r *PostgresFolderRepository) siblingConflict(ctx context.Context, parentID *string, name string) error {
	conflict := &domain.ConflictError{
		Message:      fmt.Sprintf("folder '%s' already exists in this location", name),
		ResourceType: "folder",
	}
	existing, err := r.FindSibling(ctx, parentID, name, "")
	if err == nil && existing != nil {
		conflict.ResourceID = existing.ID
	}
	return conflict
}

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (*models.Folder, error) {
	var f models.Folder
	err := row.Scan(
		&f.ID,
		&f.ParentID,
		&f.Name,
		&f.VirtualPath,
		&f.State,
		&f.PlaceholderKey,
		&f.CreatedBy,
		&f.CreatedAt,
		&f.UpdatedAt,
		&f.TrashedBy,
		&f.TrashedAt,
		&f.PurgedBy,
		&f.PurgedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func descendantPattern(virtualPath string) string {
	return postgres.EscapeLike(virtualPath) + "/%"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
