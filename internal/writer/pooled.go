package writer

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/contentkit/schemaload/internal/domain"
	"github.com/contentkit/schemaload/internal/store"
)

// PooledWriter delivers operations through a pool of workers sharing one
// intake queue. Each worker owns its batch buffer and flushes in groups of
// batchSize. No ordering is guaranteed across workers: once
// WaitForCompletion returns, only the set of acknowledged writes is known,
// not their order. A failing batch on one worker never halts the others;
// every failure lands in the collector and surfaces in the aggregated
// error from WaitForCompletion.
type PooledWriter struct {
	client      store.Client
	batchSize   int
	threadCount int

	mu     sync.Mutex
	state  jobState
	jobID  string
	intake chan domain.WriteOperation
	wg     sync.WaitGroup
	jobCtx context.Context
	cancel context.CancelFunc

	failMu   sync.Mutex
	failures domain.WriteErrors
	written  int
}

// NewPooledWriter creates a pooled writer. Zero batchSize or threadCount
// select the defaults (100 and 10).
func NewPooledWriter(client store.Client, batchSize, threadCount int) *PooledWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if threadCount <= 0 {
		threadCount = DefaultThreadCount
	}
	return &PooledWriter{
		client:      client,
		batchSize:   batchSize,
		threadCount: threadCount,
	}
}

// JobID returns the handle of the running write job, empty before Initialize
func (w *PooledWriter) JobID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.jobID
}

// Initialize starts the background write job
func (w *PooledWriter) Initialize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateUninitialized {
		return domain.ErrNotInitialized
	}
	if err := w.client.Ping(ctx); err != nil {
		return &domain.InitializationError{Cause: err}
	}

	w.jobID = uuid.NewString()
	// Intake buffer bounds how far producers can run ahead of the workers;
	// a full buffer blocks Write (backpressure)
	w.intake = make(chan domain.WriteOperation, w.batchSize*w.threadCount)
	// Workers outlive the caller's Initialize context: the job stops only
	// through WaitForCompletion
	w.jobCtx, w.cancel = context.WithCancel(context.Background())

	for i := 0; i < w.threadCount; i++ {
		w.wg.Add(1)
		go w.worker()
	}

	w.state = stateInitialized

	log.Debug().
		Str("job_id", w.jobID).
		Int("batch_size", w.batchSize).
		Int("thread_count", w.threadCount).
		Msg("Pooled write job started")

	return nil
}

// Write enqueues each operation. Enqueue blocks once the intake buffer is
// full; a cancelled context aborts the enqueue, not the job.
func (w *PooledWriter) Write(ctx context.Context, items []domain.WriteOperation) error {
	w.mu.Lock()
	if w.state != stateInitialized && w.state != stateWriting {
		w.mu.Unlock()
		return domain.ErrNotInitialized
	}
	w.state = stateWriting
	intake := w.intake
	w.mu.Unlock()

	for _, item := range items {
		select {
		case intake <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// WaitForCompletion flushes in-flight batches, drains the workers and stops
// the job. Idempotent: once completed, further calls return nil.
func (w *PooledWriter) WaitForCompletion(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case stateCompleted:
		w.mu.Unlock()
		return nil
	case stateUninitialized:
		w.mu.Unlock()
		return domain.ErrNotInitialized
	case stateDraining:
		w.mu.Unlock()
		return nil
	}
	w.state = stateDraining
	close(w.intake)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Abort the workers' in-flight store calls; the job is unusable
		// after a cancelled drain
		w.cancel()
		<-done
		w.finish()
		return ctx.Err()
	}

	w.finish()

	w.failMu.Lock()
	defer w.failMu.Unlock()

	log.Info().
		Str("job_id", w.jobID).
		Int("written", w.written).
		Int("failed", len(w.failures)).
		Msg("Pooled write job completed")

	if len(w.failures) > 0 {
		return w.failures
	}
	return nil
}

func (w *PooledWriter) finish() {
	w.cancel()
	w.mu.Lock()
	w.state = stateCompleted
	w.mu.Unlock()
}

func (w *PooledWriter) worker() {
	defer w.wg.Done()

	batch := make([]domain.WriteOperation, 0, w.batchSize)
	for op := range w.intake {
		batch = append(batch, op)
		if len(batch) >= w.batchSize {
			w.flush(batch)
			batch = batch[:0]
		}
	}
	// Partially filled batch left when the intake closed
	w.flush(batch)
}

// flush sends one batch and records every failure in the collector.
// Nothing is ever swallowed: a whole-request failure is attributed to each
// operation in the batch, since none of them were acknowledged.
func (w *PooledWriter) flush(batch []domain.WriteOperation) {
	if len(batch) == 0 {
		return
	}

	failures, err := w.client.WriteDocuments(w.jobCtx, batch)
	if err != nil {
		w.failMu.Lock()
		for i := range batch {
			w.failures = append(w.failures, &domain.WriteFailure{URI: batch[i].URI, Cause: err})
		}
		w.failMu.Unlock()

		log.Error().
			Err(err).
			Str("job_id", w.jobID).
			Int("batch_size", len(batch)).
			Msg("Batch write failed, operations recorded in failure collector")
		return
	}

	w.failMu.Lock()
	w.failures = append(w.failures, failures...)
	w.written += len(batch) - len(failures)
	w.failMu.Unlock()

	if len(failures) > 0 {
		log.Warn().
			Str("job_id", w.jobID).
			Int("rejected", len(failures)).
			Int("batch_size", len(batch)).
			Msg("Store rejected operations in batch")
	}
}
