package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/rs/zerolog/log"

	"github.com/contentkit/schemaload/internal/domain"
)

// Config configures the filesystem document source
type Config struct {
	// Roots are the directories to walk for schema documents
	Roots []string

	// IncludePatterns and ExcludePatterns are doublestar globs matched
	// against the root-relative path. Empty includes mean "everything".
	IncludePatterns []string
	ExcludePatterns []string

	// TemplatesDir is the root-relative directory whose documents are
	// tagged with the template collection for server-side validation
	TemplatesDir string

	// DefaultPermissions and DefaultCollections are attached to every
	// document produced by the source
	DefaultPermissions map[string][]domain.Capability
	DefaultCollections []string
}

// FileSource produces the ordered document set from the configured roots.
// The walk is lexical, so the output order is deterministic.
type FileSource struct {
	cfg Config
}

// New creates a file source
func New(cfg Config) *FileSource {
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = "templates"
	}
	return &FileSource{cfg: cfg}
}

// Documents walks the roots and returns one document per accepted file
func (s *FileSource) Documents() ([]domain.Document, error) {
	var docs []domain.Document

	for _, root := range s.cfg.Roots {
		rootDocs, err := s.walkRoot(root)
		if err != nil {
			return nil, err
		}
		docs = append(docs, rootDocs...)
	}

	log.Debug().
		Int("documents", len(docs)).
		Strs("roots", s.cfg.Roots).
		Msg("Document source scan complete")

	return docs, nil
}

func (s *FileSource) walkRoot(root string) ([]domain.Document, error) {
	var docs []domain.Document

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			// Hidden directories never contribute documents
			if strings.HasPrefix(entry.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		ok, err := s.accepted(rel)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		meta := domain.Metadata{
			Permissions: s.cfg.DefaultPermissions,
			Collections: s.cfg.DefaultCollections,
		}.Clone()
		if isUnder(rel, s.cfg.TemplatesDir) {
			meta.Collections = append(meta.Collections, domain.TemplateCollection)
		}

		docs = append(docs, domain.Document{
			URI:      "/" + rel,
			Content:  content,
			Format:   FormatForPath(rel),
			Metadata: meta,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return docs, nil
}

// accepted applies the include/exclude globs to a root-relative path
func (s *FileSource) accepted(rel string) (bool, error) {
	included := len(s.cfg.IncludePatterns) == 0
	for _, pattern := range s.cfg.IncludePatterns {
		match, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("bad include pattern %q: %w", pattern, err)
		}
		if match {
			included = true
			break
		}
	}
	if !included {
		return false, nil
	}

	for _, pattern := range s.cfg.ExcludePatterns {
		match, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("bad exclude pattern %q: %w", pattern, err)
		}
		if match {
			return false, nil
		}
	}
	return true, nil
}

// FormatForPath picks the content format from the file extension
func FormatForPath(path string) domain.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".xsd", ".tdex":
		return domain.FormatXML
	case ".json", ".tdej":
		return domain.FormatJSON
	default:
		return domain.FormatText
	}
}

func isUnder(rel, dir string) bool {
	return rel == dir || strings.HasPrefix(rel, dir+"/") || strings.Contains(rel, "/"+dir+"/")
}
