// Package display implements the interactive surfaces the pipeline reports
// to: a full-screen terminal UI and a line-oriented fallback.
package display

import (
	"context"
	"errors"
	"fmt"

	"overkill/internal/workflow"
)

// Surface renders pipeline progress and collects human input. Every method
// except PromptUser and Run returns immediately.
type Surface interface {
	SetPhase(phase workflow.Phase)
	SetAgentStatus(name, status string)
	LogActivity(message, icon string)
	AddMessage(role workflow.Role, content string)
	// PromptUser blocks until one line is submitted or ctx ends. Only one
	// prompt may be outstanding at a time.
	PromptUser(ctx context.Context, question string) (string, error)
	// Run drives the surface and task concurrently until the surface is
	// closed. Run must be called at most once.
	Run(ctx context.Context, task Task) error
	// Shutdown asks the surface to close. It is idempotent.
	Shutdown()
}

// Task is the unit of work a surface runs alongside its own loop.
type Task func(ctx context.Context) error

const (
	IconInfo  = "📋"
	IconError = "❌"
	IconWarn  = "⚠️"
	IconDone  = "🎉"
)

// InputContractViolation reports misuse of the input contract, such as a
// second concurrent prompt.
type InputContractViolation struct {
	Op     string
	Reason string
}

func (e *InputContractViolation) Error() string {
	return fmt.Sprintf("display: %s: %s", e.Op, e.Reason)
}

var (
	// ErrPromptPending is returned by PromptUser while another prompt is
	// unresolved.
	ErrPromptPending = &InputContractViolation{Op: "PromptUser", Reason: "another prompt is still pending"}
	// ErrNotReady marks updates dropped because the surface could not
	// accept them yet.
	ErrNotReady = errors.New("display: surface not ready")
	// ErrClosed is returned by PromptUser once the surface has closed.
	ErrClosed = errors.New("display: surface closed")
	errRunTwice = errors.New("display: Run called more than once")
)
