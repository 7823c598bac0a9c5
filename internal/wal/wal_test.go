package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInboxWAL_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := NewInboxWAL(dir)
	if err != nil {
		t.Fatalf("NewInboxWAL failed: %v", err)
	}

	bodies := []string{
		`{"values":[0.9,0.8,0.7]}`,
		`{"values":[0.1], "sent_at":"2026-08-23T00:00:00Z"}`, // body with a space
	}
	for _, b := range bodies {
		if err := w.Append([]byte(b)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	path := w.Path()
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := Replay(path)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(entries) != len(bodies) {
		t.Fatalf("Replayed %d entries, want %d", len(entries), len(bodies))
	}
	for i, e := range entries {
		if string(e.Body) != bodies[i] {
			t.Errorf("Entry %d body = %q, want %q", i, e.Body, bodies[i])
		}
		if e.Timestamp.IsZero() {
			t.Errorf("Entry %d has zero timestamp", i)
		}
	}
}

func TestReplay_SkipsTornWrites(t *testing.T) {
	dir := t.TempDir()

	w, err := NewInboxWAL(dir)
	if err != nil {
		t.Fatalf("NewInboxWAL failed: %v", err)
	}
	if err := w.Append([]byte(`{"values":[1]}`)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	path := w.Path()
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Simulate a torn final write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	f.WriteString("2026-08-23T10:00:00Z|99|{\"val")
	f.Close()

	entries, err := Replay(path)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Replayed %d entries, want 1 (torn line skipped)", len(entries))
	}
}

func TestReplay_MissingFile(t *testing.T) {
	entries, err := Replay(filepath.Join(t.TempDir(), "absent.wal"))
	if err != nil {
		t.Fatalf("Replay of missing file errored: %v", err)
	}
	if entries != nil {
		t.Errorf("Expected nil entries, got %v", entries)
	}
}

func TestRotateWAL(t *testing.T) {
	dir := t.TempDir()

	w, err := NewInboxWAL(dir)
	if err != nil {
		t.Fatalf("NewInboxWAL failed: %v", err)
	}
	if err := w.Append([]byte(`{"values":[1]}`)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rotated, oldPath, err := RotateWAL(dir, w)
	if err != nil {
		t.Fatalf("RotateWAL failed: %v", err)
	}
	defer rotated.Close()

	if oldPath == "" {
		t.Error("RotateWAL returned empty old path")
	}
	if err := rotated.Append([]byte(`{"values":[2]}`)); err != nil {
		t.Errorf("Append to rotated WAL failed: %v", err)
	}
}
