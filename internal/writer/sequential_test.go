package writer

import (
	"context"
	"errors"
	"testing"

	"github.com/contentkit/schemaload/internal/domain"
)

func TestSequentialWriter_CommitsInSubmissionOrder(t *testing.T) {
	fs := newFakeStore()
	w := NewSequentialWriter(fs, 3)
	ctx := context.Background()

	ops := makeOps(10)
	if err := w.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := w.Write(ctx, ops); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.WaitForCompletion(ctx); err != nil {
		t.Fatalf("WaitForCompletion() error = %v", err)
	}

	written := fs.writtenURIs()
	if len(written) != len(ops) {
		t.Fatalf("expected %d writes, got %d", len(ops), len(written))
	}
	for i, op := range ops {
		if written[i] != op.URI {
			t.Errorf("position %d: expected %s, got %s", i, op.URI, written[i])
		}
	}
	// 10 ops at batch size 3 means 4 physical batches
	if got := fs.batchCount(); got != 4 {
		t.Errorf("expected 4 physical batches, got %d", got)
	}
}

func TestSequentialWriter_FailFast(t *testing.T) {
	fs := newFakeStore()
	ops := makeOps(6)
	fs.rejectURIs[ops[2].URI] = errRejected

	// Batch size 1 so each op is its own request
	w := NewSequentialWriter(fs, 1)
	ctx := context.Background()

	if err := w.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	err := w.Write(ctx, ops)
	if err == nil {
		t.Fatal("expected Write to fail")
	}
	var wf *domain.WriteFailure
	if !errors.As(err, &wf) {
		t.Fatalf("expected *domain.WriteFailure, got %T", err)
	}
	if wf.URI != ops[2].URI {
		t.Errorf("expected failure for %s, got %s", ops[2].URI, wf.URI)
	}

	// Nothing after the failing operation was attempted
	written := fs.writtenURIs()
	if len(written) != 2 {
		t.Fatalf("expected 2 writes before the failure, got %d", len(written))
	}
}

func TestSequentialWriter_WriteBeforeInitialize(t *testing.T) {
	w := NewSequentialWriter(newFakeStore(), 0)
	err := w.Write(context.Background(), makeOps(1))
	if !errors.Is(err, domain.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestSequentialWriter_InitializeUnreachable(t *testing.T) {
	fs := newFakeStore()
	fs.pingErr = errors.New("connection refused")
	w := NewSequentialWriter(fs, 0)

	err := w.Initialize(context.Background())
	var ie *domain.InitializationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *domain.InitializationError, got %v", err)
	}
}

func TestSequentialWriter_WaitForCompletionIdempotent(t *testing.T) {
	fs := newFakeStore()
	w := NewSequentialWriter(fs, 0)
	ctx := context.Background()

	if err := w.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := w.Write(ctx, makeOps(3)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.WaitForCompletion(ctx); err != nil {
		t.Fatalf("first WaitForCompletion() error = %v", err)
	}
	if err := w.WaitForCompletion(ctx); err != nil {
		t.Fatalf("second WaitForCompletion() error = %v", err)
	}
	if got := len(fs.writtenURIs()); got != 3 {
		t.Errorf("expected 3 writes, got %d", got)
	}

	// The completed writer refuses further writes
	if err := w.Write(ctx, makeOps(1)); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized after completion, got %v", err)
	}
}
