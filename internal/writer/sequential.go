package writer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/contentkit/schemaload/internal/domain"
	"github.com/contentkit/schemaload/internal/store"
)

// SequentialWriter issues synchronous store calls from the calling
// goroutine. One worker by default: an error from the store surfaces
// synchronously to the caller instead of being lost in a background
// worker, and writes commit in submission order.
type SequentialWriter struct {
	client    store.Client
	batchSize int
	state     jobState
	written   int
}

// NewSequentialWriter creates a sequential writer over the given client
func NewSequentialWriter(client store.Client, batchSize int) *SequentialWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SequentialWriter{
		client:    client,
		batchSize: batchSize,
	}
}

// Initialize verifies the store is reachable
func (w *SequentialWriter) Initialize(ctx context.Context) error {
	if w.state != stateUninitialized {
		return domain.ErrNotInitialized
	}
	if err := w.client.Ping(ctx); err != nil {
		return &domain.InitializationError{Cause: err}
	}
	w.state = stateInitialized
	return nil
}

// Write sends the items in sub-batches, blocking on each call. The first
// failure aborts the remaining writes and is returned to the caller.
func (w *SequentialWriter) Write(ctx context.Context, items []domain.WriteOperation) error {
	if w.state != stateInitialized && w.state != stateWriting {
		return domain.ErrNotInitialized
	}
	w.state = stateWriting

	for start := 0; start < len(items); start += w.batchSize {
		end := start + w.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		failures, err := w.client.WriteDocuments(ctx, batch)
		if err != nil {
			return &domain.WriteFailure{URI: batch[0].URI, Cause: err}
		}
		if len(failures) > 0 {
			return failures[0]
		}
		w.written += len(batch)
	}

	return nil
}

// WaitForCompletion is trivially satisfied: every Write already blocked
// until the store acknowledged it
func (w *SequentialWriter) WaitForCompletion(ctx context.Context) error {
	if w.state == stateCompleted {
		return nil
	}
	if w.state == stateUninitialized {
		return domain.ErrNotInitialized
	}
	w.state = stateCompleted

	log.Debug().
		Int("written", w.written).
		Msg("Sequential write pass completed")

	return nil
}
