package workflow

// Role identifies the author of a conversation turn.
type Role int

const (
	RoleAgent Role = iota + 1
	RoleUser
)

func (r Role) String() string {
	switch r {
	case RoleAgent:
		return "agent"
	case RoleUser:
		return "user"
	default:
		return "unknown"
	}
}

// Label is the upper-case form used when rendering a transcript.
func (r Role) Label() string {
	switch r {
	case RoleAgent:
		return "AGENT"
	case RoleUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// Prefix is the fixed visual prefix for conversation log lines.
func (r Role) Prefix() string {
	switch r {
	case RoleAgent:
		return "Agent: "
	case RoleUser:
		return "You: "
	default:
		return ""
	}
}
