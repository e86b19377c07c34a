// Package testutil provides shared test helpers for the pipeline packages.
package testutil

import (
	"testing"
	"time"

	"github.com/doback-data/stability.report/internal/fsutil"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// SeedFiles populates an in-memory filesystem with empty files at the given
// paths, stamping them with a fixed modification time.
func SeedFiles(t *testing.T, fs *fsutil.MemoryFileSystem, paths ...string) {
	t.Helper()
	mod := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	for _, p := range paths {
		fs.WriteFile(p, []byte("x"), mod)
	}
}
