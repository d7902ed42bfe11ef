// Package persist writes JSON documents to a fixed file.
package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/workbench/internal/domain"
)

// ErrInvalidJSON is returned for bodies that are not valid JSON
var ErrInvalidJSON = errors.New("invalid JSON")

// Writer overwrites one file with pretty-printed JSON
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter creates a writer for path
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Save validates raw, indents it by two spaces and replaces the file. Key
// order is preserved. An empty body is stored as an empty object.
func (w *Writer) Save(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) {
		return ErrInvalidJSON
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return ErrInvalidJSON
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return domain.WrapFileSystem("create directory", err)
		}
	}
	if err := os.WriteFile(w.path, out.Bytes(), 0644); err != nil {
		return domain.WrapFileSystem("write file", err)
	}
	return nil
}
