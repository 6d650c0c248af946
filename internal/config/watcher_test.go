package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherFiresOnChangeWhenFileIsRewritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grammar.dfa")
	if err := os.WriteFile(path, []byte("initial\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fired := make(chan string, 1)
	w, err := NewWatcher(path, WithOnChange(func(p string) { fired <- p }))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("updated\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case got := <-fired:
		if got != path {
			t.Errorf("onChange path = %q; want %q", got, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for onChange after rewriting the grammar file")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grammar.dfa")
	os.WriteFile(path, []byte("x\n"), 0o644)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
