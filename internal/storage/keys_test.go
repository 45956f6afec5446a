package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionKey(t *testing.T) {
	assert.Equal(t, "files/f1/v3-abc.pdf", VersionKey("f1", 3, "abc", ".pdf"))
	assert.Equal(t, "files/f1/v1-abc", VersionKey("f1", 1, "abc", ""))
}

func TestPlaceholderKey(t *testing.T) {
	assert.Equal(t, "folders/Docs/Invoices/id-1.keep", PlaceholderKey("/Docs/Invoices", "id-1"))
}

func TestTrashKeyIsIdempotent(t *testing.T) {
	key := "files/f1/v1-abc.pdf"
	trashed := TrashKey(key)
	assert.Equal(t, "trash/files/f1/v1-abc.pdf", trashed)
	assert.Equal(t, trashed, TrashKey(trashed))
}

func TestUntrashKeyReversesTrashKey(t *testing.T) {
	key := "files/f1/v1-abc.pdf"
	assert.Equal(t, key, UntrashKey(TrashKey(key)))
	assert.Equal(t, key, UntrashKey(key))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".pdf", Extension("Invoice.PDF"))
	assert.Equal(t, ".gz", Extension("backup.tar.gz"))
	assert.Equal(t, "", Extension("README"))
}
