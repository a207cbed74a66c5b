package domain

// LoadResult reports one load invocation. Loaded mirrors the input URIs
// regardless of which path a document took; Validated additionally lists the
// URIs that went through the atomic validated-insert path so callers can
// verify post-hoc that validation actually occurred (empty under fallback).
// Skipped lists documents left untouched because the manifest saw no change.
type LoadResult struct {
	Loaded    []string
	Validated []string
	Skipped   []string
}

// Total returns the number of documents accounted for by the result
func (r *LoadResult) Total() int {
	return len(r.Loaded) + len(r.Skipped)
}
