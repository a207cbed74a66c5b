package store

import (
	"context"

	"github.com/contentkit/schemaload/internal/domain"
)

// Capabilities is the result of probing what the remote store supports
type Capabilities struct {
	// AtomicBatchInsert reports whether the store can validate and insert a
	// batch of templates as one transaction
	AtomicBatchInsert bool `json:"atomicBatchInsert"`
}

// EvalRequest is one script evaluated remotely as a single transaction.
// Variables travel as a structured payload alongside the script body, so
// document content never gets concatenated into the script text itself.
type EvalRequest struct {
	Script    string         `json:"script"`
	Variables map[string]any `json:"variables,omitempty"`
	Database  string         `json:"database,omitempty"`
}

// Client talks to the remote content store
type Client interface {
	// Ping verifies the store is reachable
	Ping(ctx context.Context) error

	// Capabilities probes what the store supports
	Capabilities(ctx context.Context) (Capabilities, error)

	// WriteDocuments persists a batch of operations. The store acknowledges
	// each operation individually: rejected operations come back as
	// per-operation failures, while a non-nil error means the request as a
	// whole failed and nothing in the batch was acknowledged
	WriteDocuments(ctx context.Context, ops []domain.WriteOperation) ([]*domain.WriteFailure, error)

	// Eval executes one script as a single remote transaction. There are no
	// partial results: the call either succeeds or fails as a whole
	Eval(ctx context.Context, req EvalRequest) error

	// Close releases the underlying connection
	Close() error
}
