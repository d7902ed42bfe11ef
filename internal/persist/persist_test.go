package persist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/workbench/internal/domain"
)

func setupTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answers.json")
	return NewWriter(path), path
}

func TestSave(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"object", `{"a":1}`, "{\n  \"a\": 1\n}"},
		{"key order kept", `{"b":2,"a":[1,{"c":null}]}`, "{\n  \"b\": 2,\n  \"a\": [\n    1,\n    {\n      \"c\": null\n    }\n  ]\n}"},
		{"empty body", ``, "{}"},
		{"array", `[true]`, "[\n  true\n]"},
		{"scalar", ` "x" `, `"x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, path := setupTestWriter(t)
			if err := w.Save([]byte(tt.body)); err != nil {
				t.Fatalf("Expected save to succeed, got %v", err)
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("Failed to read file: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, string(got))
			}
		})
	}
}

func TestSave_Overwrites(t *testing.T) {
	w, path := setupTestWriter(t)

	if err := w.Save([]byte(`{"first":true,"long":"xxxxxxxxxxxxxxxx"}`)); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := w.Save([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "{\n  \"a\": 1\n}" {
		t.Errorf("Expected file to be replaced, got %q", string(got))
	}
}

func TestSave_InvalidJSON(t *testing.T) {
	w, path := setupTestWriter(t)

	if err := w.Save([]byte(`{"a":`)); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("Expected ErrInvalidJSON, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected no file to be written")
	}
}

func TestSave_FileSystemError(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir) // a directory cannot be written as a file

	err := w.Save([]byte(`{}`))
	if !errors.Is(err, domain.ErrFileSystem) {
		t.Errorf("Expected filesystem error, got %v", err)
	}
}
