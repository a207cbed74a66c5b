package domain

// Format identifies how a document's content is encoded
type Format string

const (
	// FormatXML is tagged markup (schemas, XSD, XML templates)
	FormatXML Format = "xml"
	// FormatJSON is structured data (JSON templates, rulesets)
	FormatJSON Format = "json"
	// FormatText is opaque text loaded as-is
	FormatText Format = "text"
)

// Capability is a permission capability granted to a role
type Capability string

const (
	CapabilityRead       Capability = "read"
	CapabilityUpdate     Capability = "update"
	CapabilityInsert     Capability = "insert"
	CapabilityExecute    Capability = "execute"
	CapabilityNodeUpdate Capability = "node-update"
)

// TemplateCollection is the marker collection: documents tagged with it
// are validated server-side before insertion
const TemplateCollection = "http://schemaload/templates"

// Metadata carries per-document permission grants and collection tags
type Metadata struct {
	Permissions map[string][]Capability // role -> capabilities
	Collections []string
}

// HasCollection reports whether the metadata carries the given collection tag
func (m Metadata) HasCollection(name string) bool {
	for _, c := range m.Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can build immutable write operations
// from shared metadata defaults
func (m Metadata) Clone() Metadata {
	out := Metadata{
		Collections: append([]string(nil), m.Collections...),
	}
	if m.Permissions != nil {
		out.Permissions = make(map[string][]Capability, len(m.Permissions))
		for role, caps := range m.Permissions {
			out.Permissions[role] = append([]Capability(nil), caps...)
		}
	}
	return out
}

// Document is one unit produced by a document source
type Document struct {
	URI      string
	Content  []byte
	Format   Format
	Metadata Metadata
}

// IsTemplate reports whether the document is tagged for server-side validation
func (d Document) IsTemplate() bool {
	return d.Metadata.HasCollection(TemplateCollection)
}
