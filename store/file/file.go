/*
Package file provides a filesystem Store: one JSON document per collection.

LAYOUT:
  <dataDir>/customers.json
  <dataDir>/customerPoints.json
  ...

WRITE SAFETY:
  Documents are written to a temp file in the same directory and renamed
  into place, so a crash mid-write never leaves a half document behind.

ABSENCE:
  A missing file reads as nil. Corrupt content is NOT detected here; the
  codec above this layer falls back to an empty collection when it cannot
  decode what it reads.
*/
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type Store struct {
	dir string
}

// New creates the data directory if needed and returns the store.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *Store) Read(_ context.Context, collection string) ([]byte, error) {
	data, err := os.ReadFile(s.path(collection))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return data, nil
}

func (s *Store) Write(_ context.Context, collection string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, collection+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", collection, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := os.Rename(tmpName, s.path(collection)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", collection, err)
	}
	return nil
}
