package db

import (
	"context"
	"testing"
)

func TestNewWithInvalidURL(t *testing.T) {
	_, err := New(context.Background(), "postgres://invalid:5432/nonexistent?connect_timeout=1")
	if err == nil {
		t.Fatal("expected error for invalid database URL, got nil")
	}
}

func TestNewWithEmptyURL(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty database URL, got nil")
	}
}

func TestRunMigrationsMissingDir(t *testing.T) {
	err := RunMigrations("postgres://invalid:5432/nonexistent?connect_timeout=1", t.TempDir()+"/missing")
	if err == nil {
		t.Fatal("expected error for missing migrations directory, got nil")
	}
}
