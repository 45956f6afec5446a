// Package memory is an in-process BlobStore for development and tests
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"docvault/internal/storage"
)

// FaultFunc decides whether an operation on key should fail. op is one of
// put, move_to_trash, restore_from_trash, delete, open.
type FaultFunc func(op, key string) error

// BlobStore keeps objects in a map
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	fault   FaultFunc
}

// NewBlobStore creates an empty store
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// SetFault installs fn to inject failures; nil clears it
func (s *BlobStore) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *BlobStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if err := s.check("put", key); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch for %s: declared %d, read %d", key, size, len(data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return key, nil
}

func (s *BlobStore) MoveToTrash(ctx context.Context, key string) (string, error) {
	if err := s.check("move_to_trash", key); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, storage.ErrObjectNotFound)
	}
	target := storage.TrashKey(key)
	delete(s.objects, key)
	s.objects[target] = data
	return target, nil
}

func (s *BlobStore) RestoreFromTrash(ctx context.Context, key string) (string, error) {
	if err := s.check("restore_from_trash", key); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, storage.ErrObjectNotFound)
	}
	target := storage.UntrashKey(key)
	delete(s.objects, key)
	s.objects[target] = data
	return target, nil
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.check("delete", key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *BlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.check("open", key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Has reports whether key exists
func (s *BlobStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

// Keys lists every stored key in sorted order
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s *BlobStore) check(op, key string) error {
	s.mu.RLock()
	fault := s.fault
	s.mu.RUnlock()
	if fault == nil {
		return nil
	}
	return fault(op, key)
}
