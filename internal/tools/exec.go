package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"overkill/internal/llm"
)

const (
	defaultBashTimeout  = 120 * time.Second
	defaultBashMaxBytes = 32 * 1024
)

// BashTool runs a shell command with the repository root as working
// directory. Output streams are captured up to a fixed size each.
type BashTool struct {
	Workspace Workspace
	Timeout   time.Duration
}

type bashArgs struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxOutputBytes int    `json:"max_output_bytes"`
}

func (t *BashTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionDef{
			Name: NameBash,
			Description: "Run a shell command in the repository root and return exit code, stdout and stderr. " +
				"Use it for read-only inspection such as `git log --oneline -20` or `ls -la`.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"command":          map[string]interface{}{"type": "string", "description": "Shell command (sh -c / cmd /C)"},
					"timeout_seconds":  map[string]interface{}{"type": "integer"},
					"max_output_bytes": map[string]interface{}{"type": "integer", "description": "Max bytes captured per stream (default 32768)"},
				},
				"required": []string{"command"},
			},
		},
	}
}

func (t *BashTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in bashArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("Bash: invalid JSON arguments: %w", err)
	}
	command := strings.TrimSpace(in.Command)
	if command == "" {
		return "", errors.New("command is required")
	}

	timeout := time.Duration(in.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = t.Timeout
	}
	if timeout <= 0 {
		timeout = defaultBashTimeout
	}
	maxBytes := in.MaxOutputBytes
	if maxBytes <= 0 {
		maxBytes = defaultBashMaxBytes
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	stdoutCapture := &limitedBuffer{buf: &stdout, max: maxBytes}
	stderrCapture := &limitedBuffer{buf: &stderr, max: maxBytes}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(cmdCtx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(cmdCtx, "sh", "-c", command)
	}
	cmd.Dir = t.Workspace.Resolve("")
	cmd.Env = os.Environ()
	cmd.Stdout = stdoutCapture
	cmd.Stderr = stderrCapture
	// Bound how long Wait can hang after cancellation if orphaned
	// subprocesses keep the pipes open.
	cmd.WaitDelay = 500 * time.Millisecond
	killProcessGroupOnCancel(cmd)

	start := time.Now()
	err := cmd.Run()

	ctxErr := cmdCtx.Err()
	timedOut := errors.Is(ctxErr, context.DeadlineExceeded)
	exitCode, errorType := classifyExecError(err)
	switch {
	case err == nil:
	case timedOut:
		exitCode, errorType = -1, "timeout"
	case errors.Is(ctxErr, context.Canceled):
		exitCode, errorType = -1, "canceled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "exit_code: %d\n", exitCode)
	fmt.Fprintf(&b, "duration_ms: %d\n", time.Since(start).Milliseconds())
	fmt.Fprintf(&b, "timed_out: %t\n", timedOut)
	fmt.Fprintf(&b, "error_type: %s\n", errorType)
	if err != nil {
		fmt.Fprintf(&b, "error_message: %s\n", strings.TrimSpace(err.Error()))
	}
	if n := stdoutCapture.TruncatedBytes(); n > 0 {
		fmt.Fprintf(&b, "stdout_truncated_bytes: %d\n", n)
	}
	if n := stderrCapture.TruncatedBytes(); n > 0 {
		fmt.Fprintf(&b, "stderr_truncated_bytes: %d\n", n)
	}
	fmt.Fprintf(&b, "stdout:\n%s\n", strings.TrimRight(stdout.String(), "\n"))
	fmt.Fprintf(&b, "stderr:\n%s", strings.TrimRight(stderr.String(), "\n"))
	return b.String(), nil
}

type limitedBuffer struct {
	buf       *bytes.Buffer
	max       int
	truncated int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if l.max <= 0 {
		return l.buf.Write(p)
	}
	remaining := l.max - l.buf.Len()
	if remaining <= 0 {
		l.truncated += len(p)
		return len(p), nil
	}
	if len(p) > remaining {
		l.truncated += len(p) - remaining
		p = p[:remaining]
	}
	return l.buf.Write(p)
}

func (l *limitedBuffer) TruncatedBytes() int {
	return l.truncated
}

func classifyExecError(err error) (exitCode int, errorType string) {
	if err == nil {
		return 0, "none"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return -1, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return -1, "canceled"
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), "non_zero_exit"
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		if errors.Is(execErr.Err, exec.ErrNotFound) {
			return -1, "command_not_found"
		}
		return -1, "exec_error"
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		if errors.Is(pathErr.Err, os.ErrNotExist) {
			return -1, "command_not_found"
		}
		return -1, "path_error"
	}
	return -1, "runtime_error"
}
