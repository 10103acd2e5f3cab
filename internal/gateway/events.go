package gateway

import "encoding/json"

// Event is one item of a session turn. The set of variants is closed;
// anything the gateway cannot classify arrives as Passthrough.
type Event interface {
	isEvent()
}

// TextFragment is a piece of assistant text. Fragments of one turn
// concatenate, in emission order, to the full response.
type TextFragment struct {
	Text string
}

// ToolInvocation reports that the agent called a tool.
type ToolInvocation struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult carries what a tool call returned to the agent.
type ToolResult struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

// TurnComplete is always the last event of a turn. Err is set when the
// turn failed.
type TurnComplete struct {
	StopReason string
	Err        error
}

// Passthrough wraps response content without a dedicated variant, such
// as thinking blocks or an unusual stop reason.
type Passthrough struct {
	Kind   string
	Detail string
}

func (TextFragment) isEvent()   {}
func (ToolInvocation) isEvent() {}
func (ToolResult) isEvent()     {}
func (TurnComplete) isEvent()   {}
func (Passthrough) isEvent()    {}
