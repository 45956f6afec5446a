package handler

import (
	"log/slog"
	"net/http"

	"docvault/internal/domain"
	"docvault/internal/domain/models/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/httputil"
)

// rootFolderID addresses the repository root in folder routes
const rootFolderID = "root"

// FolderHandler handles HTTP requests for folder operations
type FolderHandler struct {
	folderService    docsysSvc.FolderService
	lifecycleService docsysSvc.LifecycleService
	logger           *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(folderService docsysSvc.FolderService, lifecycleService docsysSvc.LifecycleService, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{
		folderService:    folderService,
		lifecycleService: lifecycleService,
		logger:           logger,
	}
}

// UpdateFolderRequest renames and/or moves a folder. parent_id is tri-state:
// absent leaves the parent alone, null moves to the root.
type UpdateFolderRequest struct {
	Name     *string                 `json:"name,omitempty"`
	ParentID httputil.OptionalString `json:"parent_id"`
}

// CreateFolder creates a new folder
// POST /api/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	var req docsysSvc.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	folder, err := h.folderService.CreateFolder(r.Context(), httputil.GetActor(r), &req)
	if err != nil {
		HandleCreateConflict(w, err, func(id string) (*docsystem.Folder, error) {
			return h.folderService.GetFolder(r.Context(), id)
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// GetFolder retrieves a folder by ID
// GET /api/folders/{id}
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	folder, err := h.folderService.GetFolder(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// GetFolderByPath resolves a virtual path
// GET /api/folders/by-path?path=/Finance/2024
func (h *FolderHandler) GetFolderByPath(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.RespondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	folder, err := h.folderService.GetFolderByPath(r.Context(), path)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// ListChildren lists the child folders and files of a folder.
// GET /api/folders/{id}/children?state=active (id "root" lists the root)
func (h *FolderHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	var parentID *string
	if id := r.PathValue("id"); id != rootFolderID {
		parentID = &id
	}

	state := docsystem.FolderActive
	if s := r.URL.Query().Get("state"); s != "" {
		state = docsystem.FolderState(s)
	}

	contents, err := h.folderService.ListChildren(r.Context(), parentID, state)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, contents)
}

// UpdateFolder renames and/or moves a folder. A request carrying both is two
// audited mutations in one transaction.
// PATCH /api/folders/{id}
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}
	id := r.PathValue("id")

	var req UpdateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil && !req.ParentID.Present {
		handleError(w, domain.NewValidationError("nothing to update: provide name and/or parent_id"))
		return
	}

	folder, err := h.folderService.UpdateFolder(r.Context(), httputil.GetActor(r), id, &docsysSvc.UpdateFolderRequest{
		Name:     req.Name,
		ParentID: req.ParentID.Value,
		Move:     req.ParentID.Present,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// TrashFolder soft-deletes a folder subtree
// POST /api/folders/{id}/trash
func (h *FolderHandler) TrashFolder(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	folder, err := h.lifecycleService.TrashFolder(r.Context(), httputil.GetActor(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// RestoreFolder restores a trashed folder subtree
// POST /api/folders/{id}/restore
func (h *FolderHandler) RestoreFolder(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	folder, err := h.lifecycleService.RestoreFolder(r.Context(), httputil.GetActor(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// PurgeFolder irreversibly deletes a trashed folder subtree (privileged)
// DELETE /api/folders/{id}
func (h *FolderHandler) PurgeFolder(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	folder, err := h.lifecycleService.PurgeFolder(r.Context(), httputil.GetActor(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	h.logger.Info("folder purged via API",
		"folder_id", folder.ID,
		"actor_id", httputil.GetActor(r).ID,
	)
	httputil.RespondJSON(w, http.StatusOK, folder)
}
