package http

import (
	"net/http"
	"os"
	"testing"
)

func TestSave(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
		wantFile   string
	}{
		{
			name:       "object is pretty printed",
			body:       `{"a":1}`,
			wantStatus: http.StatusOK,
			wantBody:   "Saved!",
			wantFile:   "{\n  \"a\": 1\n}",
		},
		{
			name:       "nested",
			body:       `{"q":[1,2],"n":{"x":"y"}}`,
			wantStatus: http.StatusOK,
			wantBody:   "Saved!",
			wantFile:   "{\n  \"q\": [\n    1,\n    2\n  ],\n  \"n\": {\n    \"x\": \"y\"\n  }\n}",
		},
		{
			name:       "invalid json",
			body:       `{"a":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, cfg := setupTestServer(t, &fakeSessions{})

			w := doRequest(srv, http.MethodPost, "/save", tt.body, map[string]string{"Content-Type": "application/json"})
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Expected body %q, got %q", tt.wantBody, w.Body.String())
			}

			data, err := os.ReadFile(cfg.SaveFile)
			if tt.wantFile == "" {
				if err == nil {
					t.Errorf("Expected no file to be written, got %q", data)
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to read saved file: %v", err)
			}
			if string(data) != tt.wantFile {
				t.Errorf("Expected file %q, got %q", tt.wantFile, data)
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	srv, cfg := setupTestServer(t, &fakeSessions{})

	doRequest(srv, http.MethodPost, "/save", `{"a":1}`, nil)
	doRequest(srv, http.MethodPost, "/save", `{"b":2}`, nil)

	data, err := os.ReadFile(cfg.SaveFile)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(data) != "{\n  \"b\": 2\n}" {
		t.Errorf("Expected last document, got %q", data)
	}
}

func TestSaveAllowsAnyOrigin(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSessions{})

	w := doRequest(srv, http.MethodPost, "/save", `{"a":1}`, map[string]string{
		"Origin":       "http://anywhere.example",
		"Content-Type": "application/json",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
}

func TestSavePreflight(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSessions{})

	w := doRequest(srv, http.MethodOptions, "/save", "", map[string]string{
		"Origin":                         "http://anywhere.example",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Content-Type",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
}
