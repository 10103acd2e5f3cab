package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runGrepTool(t *testing.T, root string, payload any) (string, error) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	tool := &GrepTool{Workspace: Workspace{Root: root}}
	return tool.Call(context.Background(), json.RawMessage(data))
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestGrepToolMatchesRegex(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "a.go"), "package a\nfunc NewServer() {}\nfunc helper() {}\n")
	writeTestFile(t, filepath.Join(dir, "sub", "b.go"), "package sub\nfunc NewClient() {}\n")

	out, err := runGrepTool(t, dir, map[string]any{"pattern": `func New\w+`})
	if err != nil {
		t.Fatalf("grep returned error: %v", err)
	}
	if !strings.Contains(out, "a.go:2:func NewServer() {}") {
		t.Fatalf("expected match in a.go, got:\n%s", out)
	}
	if !strings.Contains(out, "sub/b.go:2:func NewClient() {}") {
		t.Fatalf("expected recursive match in sub/b.go, got:\n%s", out)
	}
	if strings.Contains(out, "helper") {
		t.Fatalf("did not expect helper to match, got:\n%s", out)
	}
}

func TestGrepToolSkipsHiddenAndFiltersByGlob(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "main.go"), "needle\n")
	writeTestFile(t, filepath.Join(dir, "notes.txt"), "needle\n")
	writeTestFile(t, filepath.Join(dir, ".git", "config"), "needle\n")

	out, err := runGrepTool(t, dir, map[string]any{"pattern": "needle", "glob": "**/*.go"})
	if err != nil {
		t.Fatalf("grep returned error: %v", err)
	}
	if !strings.Contains(out, "main.go:1:needle") {
		t.Fatalf("expected main.go match, got:\n%s", out)
	}
	if strings.Contains(out, "notes.txt") {
		t.Fatalf("glob should exclude notes.txt, got:\n%s", out)
	}
	if strings.Contains(out, ".git") {
		t.Fatalf("hidden directory should be skipped, got:\n%s", out)
	}
}

func TestGrepToolRejectsInvalidGlob(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "main.go"), "needle\n")

	_, err := runGrepTool(t, dir, map[string]any{"pattern": "needle", "glob": "src/[a-"})
	if err == nil || !strings.Contains(err.Error(), "invalid glob") {
		t.Fatalf("expected invalid glob error, got %v", err)
	}
}

func TestGrepToolCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "a.txt"), "Hello World\n")

	out, err := runGrepTool(t, dir, map[string]any{"pattern": "hello", "case_sensitive": false})
	if err != nil {
		t.Fatalf("grep returned error: %v", err)
	}
	if !strings.Contains(out, "a.txt:1:Hello World") {
		t.Fatalf("expected case-insensitive match, got:\n%s", out)
	}
}

func TestGrepToolRejectsInvalidPattern(t *testing.T) {
	_, err := runGrepTool(t, t.TempDir(), map[string]any{"pattern": "foo("})
	if err == nil {
		t.Fatalf("expected invalid pattern error")
	}
	if !strings.Contains(err.Error(), "invalid pattern") {
		t.Fatalf("expected invalid pattern message, got: %v", err)
	}
}

func TestGrepToolSkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "blob.bin"), "needle\x00\x00\x00")

	out, err := runGrepTool(t, dir, map[string]any{"pattern": "needle"})
	if err != nil {
		t.Fatalf("grep returned error: %v", err)
	}
	if !strings.Contains(out, "binary=1") || !strings.Contains(out, "(no matches)") {
		t.Fatalf("expected binary file to be skipped, got:\n%s", out)
	}
}
