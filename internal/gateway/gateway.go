package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"overkill/internal/llm"
	"overkill/internal/tools"
)

const defaultMaxToolRounds = 24

// SessionConfig describes one agent session.
type SessionConfig struct {
	// Name labels the session in logs and errors.
	Name         string
	SystemPrompt string
	Profile      Profile
	Permission   PermissionPolicy
	// WorkDir is the directory relative tool paths resolve against.
	WorkDir string
}

// Gateway opens agent sessions.
type Gateway interface {
	Open(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Session is a conversation with the agent. Send starts one turn; the
// returned channel yields that turn's events, ends with TurnComplete and is
// then closed. Turns of one session must not overlap.
type Session interface {
	Send(ctx context.Context, message string) (<-chan Event, error)
	Close() error
}

// Model is the part of llm.Client a session uses.
type Model interface {
	Ready() error
	Stream(ctx context.Context, req llm.ChatRequest, onDelta llm.DeltaFunc) (*llm.ChatResponse, error)
}

// AgentGateway runs sessions against a model, executing tool calls
// locally between model rounds.
type AgentGateway struct {
	Model Model
	// External tools are offered to profiles that admit them.
	External      []tools.Tool
	Logger        *zap.Logger
	MaxToolRounds int
	Temperature   float32
}

func (g *AgentGateway) Open(ctx context.Context, cfg SessionConfig) (Session, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = cfg.Profile.Name
	}
	if g == nil || g.Model == nil {
		return nil, &SessionError{Session: name, Err: errors.New("no model configured")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &SessionError{Session: name, Err: err}
	}
	if err := g.Model.Ready(); err != nil {
		return nil, &SessionError{Session: name, Err: err}
	}
	if err := cfg.Permission.validate(); err != nil {
		return nil, &SessionError{Session: name, Err: err}
	}

	registry, externalNames, err := g.buildRegistry(cfg)
	if err != nil {
		return nil, &SessionError{Session: name, Err: err}
	}
	policy := newToolPolicy(cfg.Profile, cfg.Permission, externalNames)

	defs := make([]llm.ToolDefinition, 0, len(registry.Names()))
	for _, def := range registry.Definitions() {
		if policy.toolVisible(def.Function.Name) {
			defs = append(defs, def)
		}
	}

	maxRounds := g.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session", name))
	logger.Debug("session opened",
		zap.String("profile", cfg.Profile.Name),
		zap.Strings("tools", registry.Names()),
		zap.String("permission", string(cfg.Permission.Mode)),
	)

	s := &agentSession{
		name:        name,
		model:       g.Model,
		registry:    registry,
		policy:      policy,
		toolDefs:    defs,
		maxRounds:   maxRounds,
		temperature: g.Temperature,
		logger:      logger,
	}
	if prompt := strings.TrimSpace(cfg.SystemPrompt); prompt != "" {
		s.history = append(s.history, llm.Message{Role: "system", Content: prompt})
	}
	return s, nil
}

func (g *AgentGateway) buildRegistry(cfg SessionConfig) (*tools.Registry, []string, error) {
	ws := tools.Workspace{Root: cfg.WorkDir}
	registry := tools.NewRegistry()
	for _, name := range cfg.Profile.Capabilities {
		t, err := tools.Builtin(name, ws)
		if err != nil {
			return nil, nil, err
		}
		registry.Register(t)
	}
	if !cfg.Profile.External {
		return registry, nil, nil
	}
	names := make([]string, 0, len(g.External))
	for _, t := range g.External {
		if t == nil {
			continue
		}
		name := t.Definition().Function.Name
		if _, exists := registry.Lookup(name); exists {
			return nil, nil, fmt.Errorf("external tool %q shadows a built-in tool", name)
		}
		registry.Register(t)
		names = append(names, name)
	}
	return registry, names, nil
}
