package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusConflict, "nope")

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "nope" {
		t.Errorf("expected error 'nope', got %q", body["error"])
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var v struct {
		Status string `json:"status"`
	}
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"ready","extra":1}`))
	if err := DecodeJSON(req, &v); err == nil {
		t.Fatal("expected error for unknown field")
	}

	req = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"ready"}`))
	if err := DecodeJSON(req, &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Status != "ready" {
		t.Errorf("expected status ready, got %q", v.Status)
	}
}
