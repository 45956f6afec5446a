package storage

import (
	"context"
	"io"
	"time"

	"docvault/internal/domain/services/docsystem"
	"docvault/internal/metrics"
)

// Instrumented wraps a BlobStore with Prometheus counters and latency
// histograms per operation
type Instrumented struct {
	next docsystem.BlobStore
}

// NewInstrumented wraps next
func NewInstrumented(next docsystem.BlobStore) *Instrumented {
	return &Instrumented{next: next}
}

func (s *Instrumented) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	start := time.Now()
	stored, err := s.next.Put(ctx, key, r, size)
	observe("put", start, err)
	return stored, err
}

func (s *Instrumented) MoveToTrash(ctx context.Context, key string) (string, error) {
	start := time.Now()
	moved, err := s.next.MoveToTrash(ctx, key)
	observe("move_to_trash", start, err)
	return moved, err
}

func (s *Instrumented) RestoreFromTrash(ctx context.Context, key string) (string, error) {
	start := time.Now()
	restored, err := s.next.RestoreFromTrash(ctx, key)
	observe("restore_from_trash", start, err)
	return restored, err
}

func (s *Instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	observe("delete", start, err)
	return err
}

func (s *Instrumented) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.next.Open(ctx, key)
	observe("open", start, err)
	return rc, err
}

func observe(op string, start time.Time, err error) {
	metrics.BlobOperationsTotal.WithLabelValues(op, metrics.Outcome(err)).Inc()
	metrics.BlobOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
