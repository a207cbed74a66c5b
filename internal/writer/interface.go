package writer

import (
	"context"

	"github.com/contentkit/schemaload/internal/domain"
)

// BatchWriter delivers write operations to the content store.
// Lifecycle: Initialize -> Write (repeatable) -> WaitForCompletion.
// Implementations: Sequential (synchronous, ordered, fail-fast) and
// Pooled (worker pool, unordered, failures collected).
type BatchWriter interface {
	// Initialize allocates the writer's resources. Must be called exactly
	// once before any Write; a *domain.InitializationError means the remote
	// endpoint is unreachable or misconfigured
	Initialize(ctx context.Context) error

	// Write enqueues or immediately sends the given operations. May be
	// called multiple times. Items from one call may be subdivided into
	// physical batches by the writer's own batch-size policy
	Write(ctx context.Context, items []domain.WriteOperation) error

	// WaitForCompletion blocks until every submitted operation has been
	// acknowledged or failed, then releases resources. Idempotent: a second
	// call is a no-op
	WaitForCompletion(ctx context.Context) error
}

// jobState tracks a writer's lifecycle
type jobState int

const (
	stateUninitialized jobState = iota
	stateInitialized
	stateWriting
	stateDraining
	stateCompleted
)

// DefaultBatchSize is the number of operations sent per physical batch
const DefaultBatchSize = 100

// DefaultThreadCount is the pooled writer's default worker count
const DefaultThreadCount = 10
