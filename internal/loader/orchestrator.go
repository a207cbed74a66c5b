package loader

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/contentkit/schemaload/internal/domain"
	"github.com/contentkit/schemaload/internal/store"
	"github.com/contentkit/schemaload/internal/writer"
)

// Manifest tracks content hashes of previously loaded documents so
// unchanged ones can be skipped between runs
type Manifest interface {
	Changed(uri string, content []byte) (bool, error)
	Record(uri string, content []byte) error
}

// Outcome is one document's fate within a load, for auditing
type Outcome struct {
	URI    string
	Path   string // "validated", "plain" or "skipped"
	Status string // "loaded", "skipped" or "failed"
	Error  string
}

// AuditSink records load outcomes for monitoring. Best-effort: a failing
// sink never fails the load.
type AuditSink interface {
	RecordLoad(ctx context.Context, loadID string, outcomes []Outcome) error
}

// Options configures the orchestrator
type Options struct {
	// ValidationTarget is the database the atomic validated insert runs
	// against. Empty disables the validated path entirely.
	ValidationTarget string

	// Manifest, when set, skips documents whose content is unchanged
	// since the last successful load
	Manifest Manifest

	// Audit, when set, receives per-document outcomes after each load
	Audit AuditSink
}

// Orchestrator partitions documents into a server-validated atomic-insert
// path and a plain batch-written path, and reconciles both into one
// logical load. A fresh BatchWriter is taken from the factory for each
// load so Initialize and WaitForCompletion bracket every logical batch.
type Orchestrator struct {
	client    store.Client
	newWriter func() writer.BatchWriter
	builder   *AtomicInsertBuilder
	opts      Options
}

// New creates an orchestrator over the given store client and writer factory
func New(client store.Client, newWriter func() writer.BatchWriter, opts Options) *Orchestrator {
	return &Orchestrator{
		client:    client,
		newWriter: newWriter,
		builder:   NewAtomicInsertBuilder(opts.ValidationTarget),
		opts:      opts,
	}
}

// Load delivers the documents to the store. Documents tagged with the
// template collection go through one atomic validated insert when the
// store supports it and a validation target is configured; everything else
// goes through the batch writer. Either a complete result is returned or
// one error identifying every failed document — never a silent partial
// success.
func (o *Orchestrator) Load(ctx context.Context, docs []domain.Document) (*domain.LoadResult, error) {
	loadID := uuid.NewString()
	ctx, span := startSpan(ctx, "schemaload.load",
		attribute.String("load_id", loadID),
		attribute.Int("documents", len(docs)))

	result, err := o.load(ctx, loadID, docs)
	endSpan(span, err, "load")
	return result, err
}

func (o *Orchestrator) load(ctx context.Context, loadID string, docs []domain.Document) (*domain.LoadResult, error) {
	pending, skipped := o.filterUnchanged(docs)

	atomic := o.atomicInsertAvailable(ctx)
	validated, plain := partition(pending, atomic)

	if !atomic {
		if n := countTemplates(pending); n > 0 {
			// Graceful degradation, not an error, but it changes behavior:
			// tagged documents are loaded without server-side validation
			log.Warn().
				Int("templates", n).
				Bool("validation_target_set", o.opts.ValidationTarget != "").
				Msg("Atomic validated insert unavailable, loading templates unvalidated through the batch writer")
		}
	}

	outcomes := make([]Outcome, 0, len(docs))
	for _, uri := range skipped {
		outcomes = append(outcomes, Outcome{URI: uri, Path: "skipped", Status: "skipped"})
	}

	if len(validated) > 0 {
		if err := o.loadValidated(ctx, validated); err != nil {
			for _, doc := range validated {
				outcomes = append(outcomes, Outcome{URI: doc.URI, Path: "validated", Status: "failed", Error: err.Error()})
			}
			o.recordAudit(ctx, loadID, outcomes)
			return nil, err
		}
		for _, doc := range validated {
			outcomes = append(outcomes, Outcome{URI: doc.URI, Path: "validated", Status: "loaded"})
		}
		o.recordManifest(validated)
	}

	if len(plain) > 0 {
		if err := o.loadPlain(ctx, plain); err != nil {
			failed, aggregated := failedURIs(err)
			for _, doc := range plain {
				if msg, ok := failed[doc.URI]; ok {
					outcomes = append(outcomes, Outcome{URI: doc.URI, Path: "plain", Status: "failed", Error: msg})
				} else if aggregated {
					// Pooled partial failure: the rest of the set was
					// acknowledged even though the load as a whole failed.
					// Under the fail-fast sequential strategy the remaining
					// documents were never attempted, so nothing is recorded
					// for them.
					outcomes = append(outcomes, Outcome{URI: doc.URI, Path: "plain", Status: "loaded"})
					o.recordManifestDoc(doc)
				}
			}
			o.recordAudit(ctx, loadID, outcomes)
			return nil, err
		}
		for _, doc := range plain {
			outcomes = append(outcomes, Outcome{URI: doc.URI, Path: "plain", Status: "loaded"})
		}
		o.recordManifest(plain)
	}

	o.recordAudit(ctx, loadID, outcomes)

	result := &domain.LoadResult{Skipped: skipped}
	for _, doc := range pending {
		result.Loaded = append(result.Loaded, doc.URI)
	}
	for _, doc := range validated {
		result.Validated = append(result.Validated, doc.URI)
	}

	log.Info().
		Str("load_id", loadID).
		Int("loaded", len(result.Loaded)).
		Int("validated", len(result.Validated)).
		Int("skipped", len(result.Skipped)).
		Msg("Load completed")

	return result, nil
}

// filterUnchanged drops documents the manifest has already seen with the
// same content. A manifest error is logged and the document loads anyway.
func (o *Orchestrator) filterUnchanged(docs []domain.Document) (pending []domain.Document, skipped []string) {
	if o.opts.Manifest == nil {
		return docs, nil
	}

	pending = make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		changed, err := o.opts.Manifest.Changed(doc.URI, doc.Content)
		if err != nil {
			log.Warn().
				Err(err).
				Str("uri", doc.URI).
				Msg("Manifest lookup failed, loading document anyway")
			changed = true
		}
		if changed {
			pending = append(pending, doc)
		} else {
			skipped = append(skipped, doc.URI)
		}
	}
	return pending, skipped
}

// atomicInsertAvailable gates the validated path: the store must support
// atomic batch insert and a validation target must be configured
func (o *Orchestrator) atomicInsertAvailable(ctx context.Context) bool {
	if o.opts.ValidationTarget == "" {
		return false
	}
	caps, err := o.client.Capabilities(ctx)
	if err != nil {
		log.Warn().
			Err(err).
			Msg("Capability probe failed, assuming atomic batch insert is unsupported")
		return false
	}
	return caps.AtomicBatchInsert
}

// partition splits the documents into the validated and plain sequences.
// The two are disjoint and cover the input exactly, preserving order.
func partition(docs []domain.Document, atomic bool) (validated, plain []domain.Document) {
	if !atomic {
		return nil, docs
	}
	for _, doc := range docs {
		if doc.IsTemplate() {
			validated = append(validated, doc)
		} else {
			plain = append(plain, doc)
		}
	}
	return validated, plain
}

// loadValidated builds and evaluates the single atomic validated-insert
// call. Any failure anywhere in the call fails the entire subset; there is
// no partial commit within one atomic call.
func (o *Orchestrator) loadValidated(ctx context.Context, validated []domain.Document) error {
	uris := make([]string, 0, len(validated))
	for _, doc := range validated {
		uris = append(uris, doc.URI)
	}

	log.Info().
		Strs("templates", uris).
		Str("validation_target", o.opts.ValidationTarget).
		Msg("Loading and validating templates via atomic batch insert")

	ctx, span := startSpan(ctx, "schemaload.validated_insert",
		attribute.Int("templates", len(validated)))

	req, err := o.builder.Build(validated)
	if err == nil {
		err = o.client.Eval(ctx, req)
	}
	if err != nil {
		err = &domain.ValidationTransactionFailure{URIs: uris, Cause: err}
	}
	endSpan(span, err, "validated insert")
	return err
}

// loadPlain runs one batch-writer pass over the plain documents, following
// the configured strategy's failure semantics
func (o *Orchestrator) loadPlain(ctx context.Context, plain []domain.Document) error {
	ctx, span := startSpan(ctx, "schemaload.batch_write",
		attribute.Int("documents", len(plain)))

	w := o.newWriter()
	err := w.Initialize(ctx)
	if err == nil {
		writeErr := w.Write(ctx, domain.OperationsFor(plain))
		waitErr := w.WaitForCompletion(ctx)
		if writeErr != nil {
			err = writeErr
		} else {
			err = waitErr
		}
	}
	endSpan(span, err, "batch write")
	return err
}

// failedURIs extracts the per-document failures from a write error, keyed
// by URI. aggregated reports whether the error covers the whole set (pooled
// collector) as opposed to a fail-fast abort.
func failedURIs(err error) (failed map[string]string, aggregated bool) {
	var werrs domain.WriteErrors
	if errors.As(err, &werrs) {
		failed = make(map[string]string, len(werrs))
		for _, f := range werrs {
			failed[f.URI] = f.Cause.Error()
		}
		return failed, true
	}
	var wf *domain.WriteFailure
	if errors.As(err, &wf) {
		return map[string]string{wf.URI: wf.Cause.Error()}, false
	}
	return nil, false
}

func (o *Orchestrator) recordManifest(docs []domain.Document) {
	for _, doc := range docs {
		o.recordManifestDoc(doc)
	}
}

func (o *Orchestrator) recordManifestDoc(doc domain.Document) {
	if o.opts.Manifest == nil {
		return
	}
	if err := o.opts.Manifest.Record(doc.URI, doc.Content); err != nil {
		log.Warn().
			Err(err).
			Str("uri", doc.URI).
			Msg("Failed to record document in manifest")
	}
}

func (o *Orchestrator) recordAudit(ctx context.Context, loadID string, outcomes []Outcome) {
	if o.opts.Audit == nil || len(outcomes) == 0 {
		return
	}
	if err := o.opts.Audit.RecordLoad(ctx, loadID, outcomes); err != nil {
		log.Warn().
			Err(err).
			Str("load_id", loadID).
			Msg("Failed to record load audit")
	}
}

func countTemplates(docs []domain.Document) int {
	n := 0
	for _, doc := range docs {
		if doc.IsTemplate() {
			n++
		}
	}
	return n
}
