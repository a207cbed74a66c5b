package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/contentkit/schemaload/internal/domain"
	"github.com/contentkit/schemaload/internal/store"
)

// fakeStore records writes and can be programmed to reject individual
// operations or fail whole requests
type fakeStore struct {
	mu         sync.Mutex
	written    []string   // acknowledged URIs, in acknowledgment order
	batches    [][]string // URIs per WriteDocuments call
	rejectURIs map[string]error
	requestErr error // fails the whole request when set
	pingErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rejectURIs: map[string]error{}}
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeStore) Capabilities(ctx context.Context) (store.Capabilities, error) {
	return store.Capabilities{}, nil
}

func (f *fakeStore) WriteDocuments(ctx context.Context, ops []domain.WriteOperation) ([]*domain.WriteFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.requestErr != nil {
		return nil, f.requestErr
	}

	batch := make([]string, 0, len(ops))
	var failures []*domain.WriteFailure
	for _, op := range ops {
		batch = append(batch, op.URI)
		if cause, ok := f.rejectURIs[op.URI]; ok {
			failures = append(failures, &domain.WriteFailure{URI: op.URI, Cause: cause})
			continue
		}
		f.written = append(f.written, op.URI)
	}
	f.batches = append(f.batches, batch)
	return failures, nil
}

func (f *fakeStore) Eval(ctx context.Context, req store.EvalRequest) error {
	return nil
}

func (f *fakeStore) Close() error {
	return nil
}

func (f *fakeStore) writtenURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func (f *fakeStore) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func makeOps(n int) []domain.WriteOperation {
	ops := make([]domain.WriteOperation, 0, n)
	for i := 0; i < n; i++ {
		ops = append(ops, domain.WriteOperation{
			URI:     fmt.Sprintf("/schemas/doc-%02d.xml", i),
			Content: []byte(fmt.Sprintf("<doc>%d</doc>", i)),
		})
	}
	return ops
}

func containsURI(uris []string, uri string) bool {
	for _, u := range uris {
		if u == uri {
			return true
		}
	}
	return false
}

var errRejected = errors.New("document rejected by store")
