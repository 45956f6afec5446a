package docsystem

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"docvault/internal/config"
	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
)

// ResourceValidator validates names and ids before any lock is taken, and
// that parent folders are usable before child resources are created in them
type ResourceValidator struct {
	folderRepo docsysRepo.FolderRepository
}

// NewResourceValidator creates a new resource validator
func NewResourceValidator(folderRepo docsysRepo.FolderRepository) *ResourceValidator {
	return &ResourceValidator{folderRepo: folderRepo}
}

// ActiveFolder loads the folder and requires it to be active.
// A nil id (root) is always valid and returns nil, nil.
func (v *ResourceValidator) ActiveFolder(ctx context.Context, id *string) (*models.Folder, error) {
	if id == nil {
		return nil, nil
	}
	folder, err := v.folderRepo.GetByID(ctx, *id)
	if err != nil {
		return nil, err
	}
	if err := requireFolderState(folder, models.FolderActive); err != nil {
		return nil, err
	}
	return folder, nil
}

var segmentRules = []validation.Rule{
	validation.By(func(value any) error {
		s, _ := value.(string)
		if strings.Contains(s, "/") {
			return errors.New("cannot contain '/'")
		}
		if s == "." || s == ".." {
			return errors.New("cannot be '.' or '..'")
		}
		if strings.IndexFunc(s, unicode.IsControl) >= 0 {
			return errors.New("cannot contain control characters")
		}
		return nil
	}),
}

// ValidateFolderName trims and checks a folder name
func ValidateFolderName(name string) (string, error) {
	return validateSegment("name", name, config.MaxFolderNameLength)
}

// ValidateFileName trims and checks an uploaded file's original name
func ValidateFileName(name string) (string, error) {
	return validateSegment("file name", name, config.MaxFileNameLength)
}

func validateSegment(field, name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)
	rules := append([]validation.Rule{
		validation.Required.Error("is required"),
		validation.RuneLength(1, maxLen).Error("must be between 1 and " + strconv.Itoa(maxLen) + " characters"),
	}, segmentRules...)

	if err := validation.Validate(name, rules...); err != nil {
		return "", domain.NewValidationError("%s %s", field, err.Error())
	}
	return name, nil
}

// ValidateID checks that id is a well-formed UUID
func ValidateID(field, id string) error {
	err := validation.Validate(id, validation.Required, is.UUID)
	if err != nil {
		return domain.NewValidationError("%s: %s", field, err.Error())
	}
	return nil
}

// validateOptionalID treats nil and "" as absent and normalizes "" to nil
func validateOptionalID(field string, id *string) (*string, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	if err := ValidateID(field, *id); err != nil {
		return nil, err
	}
	return id, nil
}

func requireFolderState(folder *models.Folder, want models.FolderState) error {
	if folder.State == want {
		return nil
	}
	return domain.NewInvariantError("folder %s is %s, expected %s", folder.ID, folder.State, want)
}

func requireFileState(file *models.File, want models.FileState) error {
	if file.State == want {
		return nil
	}
	return domain.NewInvariantError("file %s is %s, expected %s", file.ID, file.State, want)
}
