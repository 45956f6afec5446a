package handler

import (
	"log/slog"
	"net/http"

	docsysRepo "docvault/internal/domain/repositories/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/httputil"
)

// defaultAuditLimit is the page size when ?limit is absent
const defaultAuditLimit = 100

// AuditHandler serves the audit trail
type AuditHandler struct {
	auditLog docsysSvc.AuditLog
	logger   *slog.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditLog docsysSvc.AuditLog, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		auditLog: auditLog,
		logger:   logger,
	}
}

// ListEvents returns audit events newest first
// GET /api/audit?file_id=&folder_id=&limit=
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultAuditLimit)
	if err != nil {
		handleError(w, err)
		return
	}

	events, err := h.auditLog.ListEvents(r.Context(), docsysRepo.AuditFilter{
		FileID:   queryString(r, "file_id"),
		FolderID: queryString(r, "folder_id"),
		Limit:    limit,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, events)
}
