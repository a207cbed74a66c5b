package loader

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/contentkit/schemaload/internal/domain"
	"github.com/contentkit/schemaload/internal/store"
)

// batchInsertScript validates and inserts every descriptor in the
// "templates" variable as one transaction against the validation database.
// The descriptors travel as a structured variable; document content is
// never spliced into the script text, so malformed identifiers or content
// cannot alter the script.
const batchInsertScript = `declareUpdate(); templates.batchInsert(external('templates'));`

// permissionDescriptor is one role/capability grant
type permissionDescriptor struct {
	Role       string            `json:"role"`
	Capability domain.Capability `json:"capability"`
}

// templateDescriptor is the per-document unit of the atomic insert call
type templateDescriptor struct {
	URI         string                 `json:"uri"`
	Format      domain.Format          `json:"format"`
	Content     any                    `json:"content"`
	Permissions []permissionDescriptor `json:"permissions"`
	Collections []string               `json:"collections"`
}

// AtomicInsertBuilder assembles the single validated-insert call for a set
// of template documents. Building is pure assembly with no I/O; the result
// is evaluated elsewhere as one blocking remote transaction.
type AtomicInsertBuilder struct {
	validationTarget string
}

// NewAtomicInsertBuilder creates a builder that targets the given
// validation database
func NewAtomicInsertBuilder(validationTarget string) *AtomicInsertBuilder {
	return &AtomicInsertBuilder{validationTarget: validationTarget}
}

// Build serializes the documents into one EvalRequest. Structured-data
// content is embedded as its parsed structure; markup and opaque text are
// embedded as raw strings.
func (b *AtomicInsertBuilder) Build(docs []domain.Document) (store.EvalRequest, error) {
	descriptors := make([]templateDescriptor, 0, len(docs))
	for _, doc := range docs {
		desc := templateDescriptor{
			URI:         doc.URI,
			Format:      doc.Format,
			Permissions: permissionsFor(doc.Metadata),
			Collections: append([]string(nil), doc.Metadata.Collections...),
		}

		switch doc.Format {
		case domain.FormatJSON:
			if !json.Valid(doc.Content) {
				return store.EvalRequest{}, fmt.Errorf("template %s is not well-formed JSON", doc.URI)
			}
			desc.Content = json.RawMessage(doc.Content)
		default:
			desc.Content = string(doc.Content)
		}

		descriptors = append(descriptors, desc)
	}

	return store.EvalRequest{
		Script:    batchInsertScript,
		Variables: map[string]any{"templates": descriptors},
		Database:  b.validationTarget,
	}, nil
}

// permissionsFor flattens the metadata's role -> capabilities mapping into
// one descriptor per role/capability pair, in deterministic order
func permissionsFor(m domain.Metadata) []permissionDescriptor {
	perms := make([]permissionDescriptor, 0, len(m.Permissions))
	for _, role := range sortedRoles(m.Permissions) {
		for _, cap := range m.Permissions[role] {
			perms = append(perms, permissionDescriptor{Role: role, Capability: cap})
		}
	}
	return perms
}

func sortedRoles(perms map[string][]domain.Capability) []string {
	roles := make([]string, 0, len(perms))
	for role := range perms {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
