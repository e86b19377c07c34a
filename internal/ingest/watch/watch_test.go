package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type recordingSink struct {
	paths chan string
}

func (s *recordingSink) OnFileSystemEvent(path string) (bool, error) {
	s.paths <- path
	return true, nil
}

func TestWatcher_ForwardsCreateEvents(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{paths: make(chan string, 16)}

	w, err := New(sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	target := filepath.Join(dir, "GPS_DOBACK007_20240115_001.txt")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-sink.paths:
		if got != target {
			t.Errorf("forwarded path = %q, want %q", got, target)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
