package manifest

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const bucketName = "schemas"

// Store is a bbolt-backed manifest of loaded documents. It maps document
// URIs to content hashes so unchanged documents can be skipped on the next
// run.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the manifest database at the given path
func Open(dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		// A locked file usually means another loader run is still holding it
		return nil, fmt.Errorf("failed to open manifest (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Info().
		Str("db_path", dbPath).
		Msg("Load manifest opened")

	return &Store{db: db}, nil
}

// Changed reports whether the document differs from what was last recorded.
// Unknown URIs count as changed.
func (s *Store) Changed(uri string, content []byte) (bool, error) {
	hash := contentHash(content)
	changed := true

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		if prev := b.Get([]byte(uri)); prev != nil {
			changed = !bytes.Equal(prev, hash)
		}
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("failed to check manifest: %w", err)
	}

	return changed, nil
}

// Record stores the document's content hash
func (s *Store) Record(uri string, content []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(uri), contentHash(content))
	})
	if err != nil {
		return fmt.Errorf("failed to record in manifest: %w", err)
	}

	log.Debug().
		Str("uri", uri).
		Msg("Manifest updated")

	return nil
}

// Delete removes a document from the manifest
func (s *Store) Delete(uri string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(uri))
	})
	if err != nil {
		return fmt.Errorf("failed to delete from manifest: %w", err)
	}
	return nil
}

// Close closes the manifest database
func (s *Store) Close() error {
	return s.db.Close()
}

func contentHash(content []byte) []byte {
	sum := sha256.Sum256(content)
	return sum[:]
}
