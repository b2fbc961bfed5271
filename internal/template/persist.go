package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Marshal renders the collection as YAML.
func Marshal(c Collection) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(c)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Persist writes c to path, replacing any existing file in full. The data
// goes to a temporary file in the same directory first, so a failed write
// leaves the previous file untouched.
func Persist(c Collection, path string) error {
	data, err := Marshal(c)
	if err != nil {
		return &PersistError{Path: path, Err: fmt.Errorf("marshal YAML: %w", err)}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &PersistError{Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &PersistError{Path: path, Err: fmt.Errorf("write: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &PersistError{Path: path, Err: fmt.Errorf("sync: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &PersistError{Path: path, Err: fmt.Errorf("close: %w", err)}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return &PersistError{Path: path, Err: fmt.Errorf("chmod: %w", err)}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &PersistError{Path: path, Err: fmt.Errorf("rename: %w", err)}
	}
	committed = true
	return nil
}
