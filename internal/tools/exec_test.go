package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func runBashTool(t *testing.T, root string, payload any) string {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	tool := &BashTool{Workspace: Workspace{Root: root}}
	out, err := tool.Call(context.Background(), json.RawMessage(data))
	if err != nil {
		t.Fatalf("Bash returned error: %v", err)
	}
	return out
}

func TestBashToolRunsInWorkspaceRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	out := runBashTool(t, dir, map[string]any{"command": `ls && echo "Hello"`})

	if !strings.Contains(out, "exit_code: 0") {
		t.Fatalf("expected successful exit code, got:\n%s", out)
	}
	if !strings.Contains(out, "marker.txt") {
		t.Fatalf("expected ls to list the workspace, got:\n%s", out)
	}
	if !strings.Contains(out, "Hello") {
		t.Fatalf("expected stdout to contain Hello, got:\n%s", out)
	}
}

func TestBashToolReportsNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell")
	}
	out := runBashTool(t, t.TempDir(), map[string]any{"command": "echo oops >&2; exit 3"})

	if !strings.Contains(out, "exit_code: 3") {
		t.Fatalf("expected exit_code 3, got:\n%s", out)
	}
	if !strings.Contains(out, "error_type: non_zero_exit") {
		t.Fatalf("expected non_zero_exit error type, got:\n%s", out)
	}
	if !strings.Contains(out, "stderr:\noops") {
		t.Fatalf("expected stderr to carry oops, got:\n%s", out)
	}
}

func TestBashToolTruncatesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell")
	}
	out := runBashTool(t, t.TempDir(), map[string]any{
		"command":          "printf '0123456789'",
		"max_output_bytes": 4,
	})
	if !strings.Contains(out, "stdout:\n0123\n") {
		t.Fatalf("expected stdout clipped to 4 bytes, got:\n%s", out)
	}
	if !strings.Contains(out, "stdout_truncated_bytes: 6") {
		t.Fatalf("expected truncated byte count, got:\n%s", out)
	}
}

func TestBashToolRequiresCommand(t *testing.T) {
	tool := &BashTool{}
	if _, err := tool.Call(context.Background(), json.RawMessage(`{"command":"  "}`)); err == nil {
		t.Fatalf("expected error for blank command")
	}
}
