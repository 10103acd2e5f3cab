package pipeline

import (
	"fmt"

	"overkill/internal/workflow"
)

// PhaseError is an unrecovered failure of one phase. It ends the run.
type PhaseError struct {
	Phase workflow.Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
