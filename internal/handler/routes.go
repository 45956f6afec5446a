package handler

import "net/http"

// Handlers groups the API handlers for route registration
type Handlers struct {
	Folder *FolderHandler
	File   *FileHandler
	Audit  *AuditHandler
	Tree   *TreeHandler
}

// RegisterRoutes mounts the API on mux (Go 1.22+ enhanced patterns).
// All routes expect an authenticated actor in the request context.
func RegisterRoutes(mux *http.ServeMux, h Handlers) {
	// Tree
	mux.HandleFunc("GET /api/tree", h.Tree.GetTree)

	// Folder routes
	mux.HandleFunc("POST /api/folders", h.Folder.CreateFolder)
	mux.HandleFunc("GET /api/folders/by-path", h.Folder.GetFolderByPath) // More specific than {id}
	mux.HandleFunc("GET /api/folders/{id}", h.Folder.GetFolder)
	mux.HandleFunc("GET /api/folders/{id}/children", h.Folder.ListChildren)
	mux.HandleFunc("PATCH /api/folders/{id}", h.Folder.UpdateFolder)
	mux.HandleFunc("POST /api/folders/{id}/trash", h.Folder.TrashFolder)
	mux.HandleFunc("POST /api/folders/{id}/restore", h.Folder.RestoreFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", h.Folder.PurgeFolder)

	// File routes
	mux.HandleFunc("POST /api/files", h.File.CreateFile)
	mux.HandleFunc("GET /api/files/{id}", h.File.GetFile)
	mux.HandleFunc("GET /api/files/{id}/versions", h.File.ListVersions)
	mux.HandleFunc("POST /api/files/{id}/versions", h.File.UploadVersion)
	mux.HandleFunc("POST /api/files/{id}/replace", h.File.ReplaceFile)
	mux.HandleFunc("POST /api/files/{id}/trash", h.File.TrashFile)
	mux.HandleFunc("POST /api/files/{id}/restore", h.File.RestoreFile)
	mux.HandleFunc("DELETE /api/files/{id}", h.File.PurgeFile)
	mux.HandleFunc("GET /api/files/{id}/download", h.File.Download)

	// Version routes
	mux.HandleFunc("POST /api/versions/{id}/restore", h.File.RestoreVersion)

	// Audit trail
	mux.HandleFunc("GET /api/audit", h.Audit.ListEvents)
}
