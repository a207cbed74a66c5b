package manifest

import (
	"path/filepath"
	"testing"
)

func TestStore_ChangedAndRecord(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	uri := "/schemas/customer.xsd"
	content := []byte("<xs:schema/>")

	changed, err := s.Changed(uri, content)
	if err != nil {
		t.Fatalf("Changed() error = %v", err)
	}
	if !changed {
		t.Error("unknown document must count as changed")
	}

	if err := s.Record(uri, content); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	changed, err = s.Changed(uri, content)
	if err != nil {
		t.Fatalf("Changed() error = %v", err)
	}
	if changed {
		t.Error("recorded document with same content must not be changed")
	}

	changed, err = s.Changed(uri, []byte("<xs:schema><xs:element/></xs:schema>"))
	if err != nil {
		t.Fatalf("Changed() error = %v", err)
	}
	if !changed {
		t.Error("modified content must count as changed")
	}
}

func TestStore_Delete(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	uri := "/templates/orders.tdex"
	content := []byte("<template/>")

	if err := s.Record(uri, content); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := s.Delete(uri); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	changed, err := s.Changed(uri, content)
	if err != nil {
		t.Fatalf("Changed() error = %v", err)
	}
	if !changed {
		t.Error("deleted document must count as changed again")
	}
}
