package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"overkill/internal/llm"
)

// Names of the built-in tools. They double as the capability names
// granted to agent sessions.
const (
	NameRead  = "Read"
	NameGrep  = "Grep"
	NameGlob  = "Glob"
	NameBash  = "Bash"
	NameWrite = "Write"
)

type Tool interface {
	Definition() llm.ToolDefinition
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// Mutating is implemented by tools that change the filesystem. Target
// returns the absolute path the call would modify.
type Mutating interface {
	Tool
	Target(args json.RawMessage) (string, error)
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	name := t.Definition().Function.Name
	r.mu.Lock()
	if r.tools == nil {
		r.tools = make(map[string]Tool)
	}
	r.tools[name] = t
	r.mu.Unlock()
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	return t, ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) Definitions() []llm.ToolDefinition {
	if r == nil {
		return nil
	}
	names := r.Names()
	r.mu.RLock()
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			defs = append(defs, t.Definition())
		}
	}
	r.mu.RUnlock()
	return defs
}

func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if r == nil {
		return "", fmt.Errorf("tool registry is nil")
	}
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.Call(ctx, args)
}

// Builtin constructs the named built-in tool rooted at ws.
func Builtin(name string, ws Workspace) (Tool, error) {
	switch name {
	case NameRead:
		return &ReadTool{Workspace: ws}, nil
	case NameGrep:
		return &GrepTool{Workspace: ws}, nil
	case NameGlob:
		return &GlobTool{Workspace: ws}, nil
	case NameBash:
		return &BashTool{Workspace: ws}, nil
	case NameWrite:
		return &WriteTool{Workspace: ws}, nil
	default:
		return nil, fmt.Errorf("unknown built-in tool: %s", name)
	}
}
