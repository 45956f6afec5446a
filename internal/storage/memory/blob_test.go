package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/storage"
)

func TestBlobStoreLifecycle(t *testing.T) {
	s := NewBlobStore()
	ctx := context.Background()

	key, err := s.Put(ctx, "files/f1/v1-x.txt", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.True(t, s.Has(key))

	moved, err := s.MoveToTrash(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "trash/files/f1/v1-x.txt", moved)
	assert.False(t, s.Has(key))

	back, err := s.RestoreFromTrash(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, key, back)
	assert.False(t, s.Has(moved))

	moved, err = s.MoveToTrash(ctx, back)
	require.NoError(t, err)

	rc, err := s.Open(ctx, moved)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(body))

	require.NoError(t, s.Delete(ctx, moved))
	// Deleting again is not an error
	require.NoError(t, s.Delete(ctx, moved))
	assert.Empty(t, s.Keys())

	_, err = s.Open(ctx, moved)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	_, err = s.MoveToTrash(ctx, key)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	_, err = s.RestoreFromTrash(ctx, moved)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestBlobStoreSizeMismatch(t *testing.T) {
	s := NewBlobStore()

	_, err := s.Put(context.Background(), "k", strings.NewReader("abc"), 10)
	assert.Error(t, err)
	assert.False(t, s.Has("k"))
}

func TestBlobStoreFault(t *testing.T) {
	s := NewBlobStore()
	ctx := context.Background()
	injected := errors.New("injected")

	s.SetFault(func(op, key string) error {
		if op == "delete" && key == "b" {
			return injected
		}
		return nil
	})

	_, err := s.Put(ctx, "b", strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Delete(ctx, "b"), injected)
	assert.True(t, s.Has("b"))

	s.SetFault(nil)
	assert.NoError(t, s.Delete(ctx, "b"))
}
