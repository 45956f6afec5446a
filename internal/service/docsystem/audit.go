package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docvault/internal/config"
	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
)

// auditLog implements the AuditLog interface
type auditLog struct {
	repo   docsysRepo.AuditRepository
	logger *slog.Logger
}

// NewAuditLog creates a new audit log
func NewAuditLog(repo docsysRepo.AuditRepository, logger *slog.Logger) docsysSvc.AuditLog {
	return &auditLog{repo: repo, logger: logger}
}

// Record appends event through the transaction carried by ctx.
// ID and OccurredAt are filled when empty.
func (a *auditLog) Record(ctx context.Context, event *models.AuditEvent) error {
	if !event.Action.Valid() {
		return domain.NewValidationError("unknown audit action %q", event.Action)
	}
	if event.ActorID == "" {
		return domain.NewValidationError("audit event requires an actor")
	}
	if event.Detail != nil && event.Detail.Action() != event.Action {
		return domain.NewValidationError("audit detail %s does not match action %s", event.Detail.Action(), event.Action)
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if err := a.repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("record %s event: %w", event.Action, err)
	}

	a.logger.Debug("audit event recorded",
		"id", event.ID,
		"action", event.Action,
		"actor_id", event.ActorID,
	)
	return nil
}

// ListEvents returns the trail newest first
func (a *auditLog) ListEvents(ctx context.Context, filter docsysRepo.AuditFilter) ([]models.AuditEvent, error) {
	if filter.FileID != nil {
		if err := ValidateID("file_id", *filter.FileID); err != nil {
			return nil, err
		}
	}
	if filter.FolderID != nil {
		if err := ValidateID("folder_id", *filter.FolderID); err != nil {
			return nil, err
		}
	}
	if filter.Limit < 0 {
		return nil, domain.NewValidationError("limit must not be negative")
	}
	if filter.Limit > config.MaxAuditListLimit {
		filter.Limit = config.MaxAuditListLimit
	}
	return a.repo.List(ctx, filter)
}

// newEvent builds an event for actor. Subject ids are attached by the caller.
func newEvent(actor models.Actor, detail models.AuditDetail) *models.AuditEvent {
	return &models.AuditEvent{
		Action:    detail.Action(),
		ActorID:   actor.ID,
		ClientIP:  actor.ClientIP,
		UserAgent: actor.UserAgent,
		Detail:    detail,
	}
}

func folderEvent(actor models.Actor, folderID string, detail models.AuditDetail) *models.AuditEvent {
	e := newEvent(actor, detail)
	e.FolderID = &folderID
	return e
}

func fileEvent(actor models.Actor, file *models.File, versionID *string, detail models.AuditDetail) *models.AuditEvent {
	e := newEvent(actor, detail)
	id := file.ID
	e.FileID = &id
	e.FolderID = file.FolderID
	e.VersionID = versionID
	return e
}
