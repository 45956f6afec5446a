package docsystem

import (
	"context"
	"fmt"
	"log/slog"

	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
)

// treeService implements the TreeService interface
type treeService struct {
	folderRepo docsysRepo.FolderRepository
	fileRepo   docsysRepo.FileRepository
	logger     *slog.Logger
}

// NewTreeService creates a new tree service
func NewTreeService(
	folderRepo docsysRepo.FolderRepository,
	fileRepo docsysRepo.FileRepository,
	logger *slog.Logger,
) docsysSvc.TreeService {
	return &treeService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
		logger:     logger,
	}
}

// GetTree builds the nested tree of active folders and the active files
// reachable through them
func (s *treeService) GetTree(ctx context.Context) (*models.TreeNode, error) {
	allFolders, err := s.folderRepo.ListByState(ctx, models.FolderActive)
	if err != nil {
		return nil, fmt.Errorf("list active folders: %w", err)
	}
	allFiles, err := s.fileRepo.ListByState(ctx, models.FileActive)
	if err != nil {
		return nil, fmt.Errorf("list active files: %w", err)
	}

	// Build folder hierarchy using 3-pass algorithm
	folderMap := make(map[string]*models.FolderTreeNode, len(allFolders))
	var rootFolderIDs []string

	// First pass: create all folder nodes
	for _, folder := range allFolders {
		folderMap[folder.ID] = &models.FolderTreeNode{
			ID:          folder.ID,
			Name:        folder.Name,
			ParentID:    folder.ParentID,
			VirtualPath: folder.VirtualPath,
			CreatedAt:   folder.CreatedAt,
			Folders:     []*models.FolderTreeNode{},
			Files:       []models.FileTreeNode{},
		}
	}

	// Second pass: nest folders. Active folders always have active parents.
	for _, folder := range allFolders {
		node := folderMap[folder.ID]
		if folder.ParentID == nil {
			rootFolderIDs = append(rootFolderIDs, folder.ID)
		} else if parent, exists := folderMap[*folder.ParentID]; exists {
			parent.Folders = append(parent.Folders, node)
		}
	}

	// Third pass: attach files. Active files inside a trashed folder have no
	// node to attach to and are left out.
	rootFiles := make([]models.FileTreeNode, 0)
	hidden := 0
	for _, file := range allFiles {
		fileNode := models.FileTreeNode{
			ID:             file.ID,
			Name:           file.OriginalName,
			FolderID:       file.FolderID,
			OwnerContext:   file.OwnerContext,
			CurrentVersion: file.CurrentVersion,
			Size:           file.Size,
			UpdatedAt:      file.UpdatedAt,
		}

		if file.FolderID == nil {
			rootFiles = append(rootFiles, fileNode)
		} else if parent, exists := folderMap[*file.FolderID]; exists {
			parent.Files = append(parent.Files, fileNode)
		} else {
			hidden++
		}
	}

	rootFolders := make([]*models.FolderTreeNode, 0, len(rootFolderIDs))
	for _, folderID := range rootFolderIDs {
		rootFolders = append(rootFolders, folderMap[folderID])
	}

	s.logger.Debug("repository tree built",
		"folder_count", len(allFolders),
		"file_count", len(allFiles)-hidden,
		"hidden_files", hidden,
	)

	return &models.TreeNode{
		Folders: rootFolders,
		Files:   rootFiles,
	}, nil
}
