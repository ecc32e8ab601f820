package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()

	valid := `
name: sitea
base_url: https://site-a.example/
selectors:
  title: h1.entry-title, .post-title h1
  chapter_list: li.wp-manga-chapter
  page_images: .reading-content img
`

	disabled := `
name: siteb
enabled: false
base_url: https://site-b.example
selectors:
  title: h1
  chapter_list: li
  page_images: img
`

	broken := `
name: sitec
base_url: https://site-c.example
selectors:
  title: h1
`

	if err := os.WriteFile(filepath.Join(tmpDir, "a.yaml"), []byte(valid), 0o644); err != nil {
		t.Fatalf("write valid yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "b.yml"), []byte(disabled), 0o644); err != nil {
		t.Fatalf("write disabled yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "c.yaml"), []byte(broken), 0o644); err != nil {
		t.Fatalf("write broken yaml: %v", err)
	}

	loaded, err := LoadFromDir(tmpDir)
	if err == nil || !strings.Contains(err.Error(), "c.yaml") {
		t.Fatalf("expected error naming c.yaml, got %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 loaded profile, got %d", len(loaded))
	}
	if loaded[0].Name != "sitea" {
		t.Fatalf("expected sitea, got %s", loaded[0].Name)
	}
	if loaded[0].Selectors.ChapterURL != "a" {
		t.Fatalf("expected default chapter url selector, got %q", loaded[0].Selectors.ChapterURL)
	}
}

func TestLoadFromDirMissingDir(t *testing.T) {
	loaded, err := LoadFromDir(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("expected missing dir to be ignored, got %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected no profiles, got %d", len(loaded))
	}
}
