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

const versionColumns = `id, file_id, version_number, blob_key, size, uploaded_by, created_at, superseded_at`

// PostgresVersionRepository implements the VersionRepository interface
type PostgresVersionRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(config *postgres.RepositoryConfig) docsysRepo.VersionRepository {
	return &PostgresVersionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a version. The (file_id, version_number) unique constraint
// turns a racing duplicate number into a ConflictError.
func (r *PostgresVersionRepository) Create(ctx context.Context, v *models.FileVersion) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, file_id, version_number, blob_key, size, uploaded_by, created_at, superseded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		v.ID,
		v.FileID,
		v.VersionNumber,
		v.BlobKey,
		v.Size,
		v.UploadedBy,
		v.CreatedAt,
		v.SupersededAt,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("version %d of file %s already exists", v.VersionNumber, v.FileID),
				ResourceType: "version",
				ResourceID:   v.FileID,
			}
		}
		if postgres.IsPgForeignKeyError(err) {
			return &domain.NotFoundError{ResourceType: "file", ResourceID: v.FileID}
		}
		return fmt.Errorf("create version: %w", err)
	}
	return nil
}

// GetByID retrieves a version by ID
func (r *PostgresVersionRepository) GetByID(ctx context.Context, id string) (*models.FileVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, versionColumns, r.tables.Versions)
	return r.getOne(ctx, query, id, id)
}

// GetByNumber retrieves a file's version by number
func (r *PostgresVersionRepository) GetByNumber(ctx context.Context, fileID string, number int) (*models.FileVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE file_id = $1 AND version_number = $2`, versionColumns, r.tables.Versions)
	return r.getOne(ctx, query, fmt.Sprintf("%s@%d", fileID, number), fileID, number)
}

// ListByFile lists all versions of a file ordered by version number
func (r *PostgresVersionRepository) ListByFile(ctx context.Context, fileID string) ([]models.FileVersion, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE file_id = $1
		ORDER BY version_number ASC
	`, versionColumns, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []models.FileVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

// MaxVersionNumber returns the highest version number of a file, 0 if none
func (r *PostgresVersionRepository) MaxVersionNumber(ctx context.Context, fileID string) (int, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(version_number), 0) FROM %s WHERE file_id = $1`, r.tables.Versions)

	var n int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, fileID).Scan(&n); err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return n, nil
}

// MarkSuperseded stamps superseded_at once
func (r *PostgresVersionRepository) MarkSuperseded(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET superseded_at = $2
		WHERE id = $1 AND superseded_at IS NULL
	`, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark version superseded: %w", err)
	}
	return nil
}

// RelocateBlob rewrites the object key of a version
func (r *PostgresVersionRepository) RelocateBlob(ctx context.Context, id, newKey string) error {
	query := fmt.Sprintf(`UPDATE %s SET blob_key = $2 WHERE id = $1`, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, newKey)
	if err != nil {
		return fmt.Errorf("relocate version blob: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{ResourceType: "version", ResourceID: id}
	}
	return nil
}

func (r *PostgresVersionRepository) getOne(ctx context.Context, query, resourceID string, args ...any) (*models.FileVersion, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	v, err := scanVersion(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{ResourceType: "version", ResourceID: resourceID}
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

func scanVersion(row rowScanner) (*models.FileVersion, error) {
	var v models.FileVersion
	err := row.Scan(
		&v.ID,
		&v.FileID,
		&v.VersionNumber,
		&v.BlobKey,
		&v.Size,
		&v.UploadedBy,
		&v.CreatedAt,
		&v.SupersededAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
