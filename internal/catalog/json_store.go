package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// JSONStore keeps the catalog in a single JSON document on disk.
type JSONStore struct {
	path string
}

// NewJSONStore returns a store bound to path. The file is created on first Load.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path reports the backing file.
func (s *JSONStore) Path() string { return s.path }

// Load reads the document. A missing or empty file yields the default catalog,
// which is written back immediately.
func (s *JSONStore) Load(ctx context.Context) (Catalog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		c := Empty()
		if err := s.Save(ctx, c); err != nil {
			return Catalog{}, err
		}
		return c, nil
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, s.path, err)
	}
	c.normalize()
	return c, nil
}

// Save writes the document atomically: temp file in the same directory, fsync, rename.
func (s *JSONStore) Save(_ context.Context, c Catalog) error {
	c.normalize()
	data, err := encodeDocument(c)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// encodeDocument emits indented UTF-8 without HTML escaping so names stay readable.
func encodeDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
