package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileRepository_LoadMissing(t *testing.T) {
	repo := NewFileRepository(t.TempDir())

	s, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.IsEmpty() {
		t.Errorf("Load() = %+v, want empty state", s)
	}
}

func TestFileRepository_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	repo := NewFileRepository(dir)
	ctx := context.Background()

	var s State
	s.Advance("/data/input.txt", 120)
	s.Advance("/data/input.txt", 240)

	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(repo.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Offset != 240 || got.Windows != 2 {
		t.Errorf("Load() = offset %d windows %d, want 240 and 2", got.Offset, got.Windows)
	}
	if !got.Matches("/data/input.txt") {
		t.Errorf("Matches() = false for saved path")
	}
	if got.Matches("/data/other.txt") {
		t.Errorf("Matches() = true for a different path")
	}
}

func TestFileRepository_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileRepository(dir)
	if err := os.WriteFile(repo.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("Load() expected error for corrupt file")
	}
}
