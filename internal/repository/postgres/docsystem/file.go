package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	"docvault/internal/repository/postgres"
)

const fileColumns = `id, owner_context, folder_id, original_name, extension, size,
	current_blob_key, current_version, state, replaced_by_id, uploaded_by,
	created_at, updated_at, trashed_by, trashed_at, purged_by, purged_at`

// PostgresFileRepository implements the FileRepository interface
type PostgresFileRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewFileRepository creates a new file repository
func NewFileRepository(config *postgres.RepositoryConfig) docsysRepo.FileRepository {
	return &PostgresFileRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a file record
func (r *PostgresFileRepository) Create(ctx context.Context, file *models.File) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_context, folder_id, original_name, extension, size,
			current_blob_key, current_version, state, replaced_by_id, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, r.tables.Files)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		file.ID,
		file.OwnerContext,
		file.FolderID,
		file.OriginalName,
		file.Extension,
		file.Size,
		file.CurrentBlobKey,
		file.CurrentVersion,
		file.State,
		file.ReplacedByID,
		file.UploadedBy,
		file.CreatedAt,
		file.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return &domain.NotFoundError{ResourceType: "folder", ResourceID: deref(file.FolderID)}
		}
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("file %s already exists", file.ID),
				ResourceType: "file",
				ResourceID:   file.ID,
			}
		}
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// GetByID retrieves a file by ID
func (r *PostgresFileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, fileColumns, r.tables.Files)
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves and locks a file row
func (r *PostgresFileRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, fileColumns, r.tables.Files)
	return r.getOne(ctx, query, id)
}

// Update writes the mutable columns of a file
func (r *PostgresFileRepository) Update(ctx context.Context, file *models.File) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET size = $1, current_blob_key = $2, current_version = $3, state = $4,
		    replaced_by_id = $5, updated_at = $6, trashed_by = $7, trashed_at = $8,
		    purged_by = $9, purged_at = $10
		WHERE id = $11
	`, r.tables.Files)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		file.Size,
		file.CurrentBlobKey,
		file.CurrentVersion,
		file.State,
		file.ReplacedByID,
		file.UpdatedAt,
		file.TrashedBy,
		file.TrashedAt,
		file.PurgedBy,
		file.PurgedAt,
		file.ID,
	)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{ResourceType: "file", ResourceID: file.ID}
	}
	return nil
}

// ListByFolder lists files directly in a folder (nil = root) in the given state
func (r *PostgresFileRepository) ListByFolder(ctx context.Context, folderID *string, state models.FileState) ([]models.File, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE folder_id IS NOT DISTINCT FROM $1::text AND state = $2
		ORDER BY original_name ASC, created_at ASC
	`, fileColumns, r.tables.Files)
	return r.list(ctx, query, folderID, state)
}

// ListByState lists every file in the given state
func (r *PostgresFileRepository) ListByState(ctx context.Context, state models.FileState) ([]models.File, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE state = $1
		ORDER BY original_name ASC, created_at ASC
	`, fileColumns, r.tables.Files)
	return r.list(ctx, query, state)
}

// ListInSubtree lists non-purged files whose folder is a non-purged folder at
// or under virtualPath
func (r *PostgresFileRepository) ListInSubtree(ctx context.Context, virtualPath string) ([]models.File, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE state <> 'purged'
		  AND folder_id IN (SELECT id FROM %s WHERE state <> 'purged' AND %s)
		ORDER BY created_at ASC
	`, fileColumns, r.tables.Files, r.tables.Folders, subtreeMatch)
	return r.list(ctx, query, virtualPath, descendantPattern(virtualPath))
}

// PurgeInSubtree marks every non-purged file under virtualPath as purged
func (r *PostgresFileRepository) PurgeInSubtree(ctx context.Context, virtualPath, actorID string, at time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET state = 'purged', purged_by = $3, purged_at = $4, updated_at = $4
		WHERE state <> 'purged'
		  AND folder_id IN (SELECT id FROM %s WHERE state <> 'purged' AND %s)
	`, r.tables.Files, r.tables.Folders, subtreeMatch)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, virtualPath, descendantPattern(virtualPath), actorID, at)
	if err != nil {
		return 0, fmt.Errorf("purge files in subtree: %w", err)
	}
	return result.RowsAffected(), nil
}

// ExistsWithContextUnder reports whether a protected file lives under virtualPath
func (r *PostgresFileRepository) ExistsWithContextUnder(ctx context.Context, virtualPath string, contexts []models.OwnerContext) (bool, error) {
	if len(contexts) == 0 {
		return false, nil
	}
	names := make([]string, len(contexts))
	for i, c := range contexts {
		names[i] = string(c)
	}

	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE state <> 'purged'
			  AND owner_context = ANY($3)
			  AND folder_id IN (SELECT id FROM %s WHERE state <> 'purged' AND %s)
		)
	`, r.tables.Files, r.tables.Folders, subtreeMatch)

	var exists bool
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, virtualPath, descendantPattern(virtualPath), names).Scan(&exists); err != nil {
		return false, fmt.Errorf("check protected files: %w", err)
	}
	return exists, nil
}

func (r *PostgresFileRepository) getOne(ctx context.Context, query, id string) (*models.File, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	file, err := scanFile(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{ResourceType: "file", ResourceID: id}
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

func (r *PostgresFileRepository) list(ctx context.Context, query string, args ...any) ([]models.File, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []models.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, *file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

func scanFile(row rowScanner) (*models.File, error) {
	var f models.File
	err := row.Scan(
		&f.ID,
		&f.OwnerContext,
		&f.FolderID,
		&f.OriginalName,
		&f.Extension,
		&f.Size,
		&f.CurrentBlobKey,
		&f.CurrentVersion,
		&f.State,
		&f.ReplacedByID,
		&f.UploadedBy,
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
