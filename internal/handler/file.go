package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"docvault/internal/config"
	"docvault/internal/domain"
	"docvault/internal/domain/models/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/httputil"
)

const (
	// uploadFormField carries the file content in multipart requests
	uploadFormField = "file"

	// multipartMemory is how much of a multipart body is held in memory
	// before spilling to temporary files
	multipartMemory = 32 << 20

	// multipartOverhead allows for boundaries and form fields on top of the
	// content itself
	multipartOverhead = 1 << 20
)

// FileHandler handles HTTP requests for files and their versions
type FileHandler struct {
	fileService      docsysSvc.FileService
	lifecycleService docsysSvc.LifecycleService
	logger           *slog.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(fileService docsysSvc.FileService, lifecycleService docsysSvc.LifecycleService, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		fileService:      fileService,
		lifecycleService: lifecycleService,
		logger:           logger,
	}
}

// CreateFile uploads the first version of a new file.
// Multipart fields: file (required), folder_id, owner_context.
// POST /api/files
func (h *FileHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	upload, cleanup, err := h.readUpload(w, r)
	if err != nil {
		h.respondUploadError(w, err)
		return
	}
	defer cleanup()

	req := &docsysSvc.CreateFileRequest{
		OwnerContext: docsystem.OwnerContext(r.FormValue("owner_context")),
		Upload:       upload,
	}
	if folderID := r.FormValue("folder_id"); folderID != "" {
		req.FolderID = &folderID
	}

	file, err := h.fileService.CreateFile(r.Context(), httputil.GetActor(r), req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, file)
}

// GetFile retrieves a file by ID
// GET /api/files/{id}
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.fileService.GetFile(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, file)
}

// UploadVersion stores a new content revision
// POST /api/files/{id}/versions
func (h *FileHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	upload, cleanup, err := h.readUpload(w, r)
	if err != nil {
		h.respondUploadError(w, err)
		return
	}
	defer cleanup()

	version, err := h.fileService.UploadVersion(r.Context(), httputil.GetActor(r), r.PathValue("id"), upload)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, version)
}

// ListVersions lists the version history of a file
// GET /api/files/{id}/versions
func (h *FileHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.fileService.ListVersions(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, versions)
}

// RestoreVersion makes an older version current again
// POST /api/versions/{id}/restore
func (h *FileHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	file, err := h.fileService.RestoreVersion(r.Context(), httputil.GetActor(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, file)
}

// ReplaceFile supersedes a file with a newly uploaded one
// POST /api/files/{id}/replace
func (h *FileHandler) ReplaceFile(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	upload, cleanup, err := h.readUpload(w, r)
	if err != nil {
		h.respondUploadError(w, err)
		return
	}
	defer cleanup()

	file, err := h.fileService.ReplaceFile(r.Context(), httputil.GetActor(r), r.PathValue("id"), upload)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, file)
}

// TrashFile soft-deletes a file
// POST /api/files/{id}/trash
func (h *FileHandler) TrashFile(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	file, err := h.fileService.TrashFile(r.Context(), httputil.GetActor(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, file)
}

// RestoreFile restores a trashed file
// POST /api/files/{id}/restore
func (h *FileHandler) RestoreFile(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	file, err := h.fileService.RestoreFile(r.Context(), httputil.GetActor(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, file)
}

// PurgeFile irreversibly deletes a trashed file (privileged)
// DELETE /api/files/{id}
func (h *FileHandler) PurgeFile(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	file, err := h.lifecycleService.PurgeFile(r.Context(), httputil.GetActor(r), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}

	h.logger.Info("file purged via API",
		"file_id", file.ID,
		"actor_id", httputil.GetActor(r).ID,
	)
	httputil.RespondJSON(w, http.StatusOK, file)
}

// Download streams the content of a version (?version=N, default current)
// GET /api/files/{id}/download
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	if !requireActor(w, r) {
		return
	}

	versionNumber, err := queryInt(r, "version", 0)
	if err != nil {
		handleError(w, err)
		return
	}

	dl, err := h.fileService.OpenDownload(r.Context(), httputil.GetActor(r), r.PathValue("id"), versionNumber)
	if err != nil {
		handleError(w, err)
		return
	}
	defer dl.Content.Close()

	w.Header().Set("Content-Type", contentType(dl.File.Extension))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": dl.File.OriginalName,
	}))
	w.Header().Set("Content-Length", strconv.FormatInt(dl.Version.Size, 10))
	w.Header().Set("X-File-Version", strconv.Itoa(dl.Version.VersionNumber))
	w.WriteHeader(http.StatusOK)

	// Headers are sent; a failure here can only be logged
	if _, err := io.Copy(w, dl.Content); err != nil {
		h.logger.Warn("download interrupted",
			"file_id", dl.File.ID,
			"version", dl.Version.VersionNumber,
			"error", err,
		)
	}
}

// readUpload parses the multipart body and returns the uploaded file.
// cleanup closes the part and removes any temporary files.
func (h *FileHandler) readUpload(w http.ResponseWriter, r *http.Request) (*docsysSvc.UploadedFile, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, nil, err
	}

	part, header, err := r.FormFile(uploadFormField)
	if err != nil {
		r.MultipartForm.RemoveAll()
		return nil, nil, domain.NewValidationError("multipart field %q is required", uploadFormField)
	}

	cleanup := func() {
		part.Close()
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart temp files", "error", err)
		}
	}

	return &docsysSvc.UploadedFile{
		Filename: header.Filename,
		Content:  part,
		Size:     header.Size,
	}, cleanup, nil
}

func (h *FileHandler) respondUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		httputil.RespondError(w, http.StatusRequestEntityTooLarge, "upload exceeds the maximum size")
	case errors.Is(err, domain.ErrValidation):
		handleError(w, err)
	default:
		httputil.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
	}
}

// contentType guesses the media type from the stored extension
func contentType(ext string) string {
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}
