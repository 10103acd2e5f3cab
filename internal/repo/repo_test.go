package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestIsRemote(t *testing.T) {
	cases := map[string]bool{
		"https://github.com/acme/app": true,
		"http://git.local/app.git":    true,
		"git@github.com:acme/app.git": true,
		"  https://example.com/x":     true,
		"./app":                       false,
		"/srv/app":                    false,
		"github.com/acme/app":         false,
	}
	for location, want := range cases {
		if got := IsRemote(location); got != want {
			t.Fatalf("IsRemote(%q) = %v, want %v", location, got, want)
		}
	}
}

func TestAcquireLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	var a Acquirer
	co, err := a.Acquire(context.Background(), dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if co.Dir() != dir || co.Temporary() {
		t.Fatalf("unexpected checkout %+v", co)
	}
	if err := co.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("local directory must survive Release: %v", err)
	}
}

func TestAcquireMissingPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	var a Acquirer
	_, err := a.Acquire(context.Background(), missing)
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected AcquisitionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "path does not exist") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcquireRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "README.md")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var a Acquirer
	if _, err := a.Acquire(context.Background(), file); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("expected not-a-directory error, got %v", err)
	}
}

func writeFakeGit(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	path := filepath.Join(t.TempDir(), "git")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestAcquireCloneAndRelease(t *testing.T) {
	git := writeFakeGit(t, `mkdir -p "$3" && echo hello > "$3/README.md"`)
	parent := t.TempDir()

	var progress []string
	a := Acquirer{Git: git, TempDir: parent, Progress: func(message, icon string) {
		progress = append(progress, icon+" "+message)
	}}
	co, err := a.Acquire(context.Background(), "https://example.com/acme/app.git")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !co.Temporary() || !strings.HasPrefix(filepath.Base(co.Dir()), tempPrefix) {
		t.Fatalf("unexpected checkout dir %q", co.Dir())
	}
	if _, err := os.Stat(filepath.Join(co.Dir(), "README.md")); err != nil {
		t.Fatalf("clone content missing: %v", err)
	}
	if len(progress) != 2 || !strings.HasPrefix(progress[0], "📥 Cloning") || !strings.HasPrefix(progress[1], "✅ Cloned to") {
		t.Fatalf("unexpected progress %q", progress)
	}

	if err := co.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := co.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, err := os.Stat(co.Dir()); !os.IsNotExist(err) {
		t.Fatalf("clone directory still exists: %v", err)
	}
}

func TestAcquireCloneFailureCleansUp(t *testing.T) {
	git := writeFakeGit(t, `echo "fatal: repository not found" >&2; exit 128`)
	parent := t.TempDir()

	a := Acquirer{Git: git, TempDir: parent}
	_, err := a.Acquire(context.Background(), "git@example.com:acme/missing.git")
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected AcquisitionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "repository not found") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("read parent: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed clone left %d entries behind", len(entries))
	}
}
