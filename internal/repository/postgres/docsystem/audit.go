package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	"docvault/internal/repository/postgres"
)

// defaultAuditLimit caps unfiltered audit listings
const defaultAuditLimit = 100

// PostgresAuditRepository implements the AuditRepository interface.
// Rows are only ever inserted.
type PostgresAuditRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(config *postgres.RepositoryConfig) docsysRepo.AuditRepository {
	return &PostgresAuditRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Insert appends an event
func (r *PostgresAuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	detail, err := models.EncodeAuditDetail(event.Detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, file_id, folder_id, version_id, action, actor_id, occurred_at, client_ip, user_agent, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.tables.Audit)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		event.ID,
		event.FileID,
		event.FolderID,
		event.VersionID,
		event.Action,
		event.ActorID,
		event.OccurredAt,
		event.ClientIP,
		event.UserAgent,
		detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns events matching the filter, newest first
func (r *PostgresAuditRepository) List(ctx context.Context, filter docsysRepo.AuditFilter) ([]models.AuditEvent, error) {
	var conditions []string
	var args []any

	if filter.FileID != nil {
		args = append(args, *filter.FileID)
		conditions = append(conditions, fmt.Sprintf("file_id = $%d", len(args)))
	}
	if filter.FolderID != nil {
		args = append(args, *filter.FolderID)
		conditions = append(conditions, fmt.Sprintf("folder_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, file_id, folder_id, version_id, action, actor_id, occurred_at, client_ip, user_agent, detail
		FROM %s
		%s
		ORDER BY occurred_at DESC, id DESC
		LIMIT $%d
	`, r.tables.Audit, where, len(args))

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := []models.AuditEvent{}
	for rows.Next() {
		var e models.AuditEvent
		var raw []byte
		if err := rows.Scan(
			&e.ID,
			&e.FileID,
			&e.FolderID,
			&e.VersionID,
			&e.Action,
			&e.ActorID,
			&e.OccurredAt,
			&e.ClientIP,
			&e.UserAgent,
			&raw,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		e.Detail, err = models.DecodeAuditDetail(e.Action, raw)
		if err != nil {
			r.logger.Warn("undecodable audit detail", "id", e.ID, "action", e.Action, "error", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
