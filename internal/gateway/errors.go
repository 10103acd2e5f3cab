package gateway

import (
	"fmt"
	"strings"

	"overkill/internal/llm"
)

// SessionError reports that an agent session could not run, or finished
// without output that was required of it.
type SessionError struct {
	Session string
	Err     error
}

func (e *SessionError) Error() string {
	name := strings.TrimSpace(e.Session)
	if name == "" {
		name = "agent"
	}
	msg := fmt.Sprintf("%s session: %v", name, e.Err)
	if hint := llm.Hint(e.Err); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
