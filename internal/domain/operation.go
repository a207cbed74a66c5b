package domain

// WriteOperation is one immutable unit of work for a batch writer:
// target URI, content payload and structured metadata. Ownership transfers
// to the writer for the duration of a Write call.
type WriteOperation struct {
	URI      string
	Content  []byte
	Metadata Metadata
}

// NewWriteOperation copies the document's content and metadata so later
// mutation of the source document cannot leak into an enqueued operation
func NewWriteOperation(doc Document) WriteOperation {
	return WriteOperation{
		URI:      doc.URI,
		Content:  append([]byte(nil), doc.Content...),
		Metadata: doc.Metadata.Clone(),
	}
}

// OperationsFor converts documents into write operations, preserving order
func OperationsFor(docs []Document) []WriteOperation {
	ops := make([]WriteOperation, 0, len(docs))
	for _, doc := range docs {
		ops = append(ops, NewWriteOperation(doc))
	}
	return ops
}
