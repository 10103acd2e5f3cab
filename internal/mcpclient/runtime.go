package mcpclient

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"overkill/internal/tools"
)

// Runtime owns the MCP sessions opened for one run and the tools they
// export.
type Runtime struct {
	mu      sync.Mutex
	servers []*server
	tools   []*Tool
	closed  bool
}

// Connect opens every configured server. A server that fails to connect
// is logged and skipped; Connect only fails when servers were configured
// and none of them came up.
func Connect(ctx context.Context, configs []ServerConfig, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	servers, connectErr := connectServers(ctx, configs)
	if connectErr != nil {
		logger.Warn("mcp servers degraded", zap.Error(connectErr))
	}
	if enabledCount(configs) > 0 && len(servers) == 0 {
		if connectErr == nil {
			connectErr = errors.New("no servers connected")
		}
		return nil, connectErr
	}

	exported, toolsErr := toolsFromServers(servers)
	if toolsErr != nil {
		logger.Warn("mcp tools skipped", zap.Error(toolsErr))
	}
	for _, s := range servers {
		logger.Info("mcp server connected",
			zap.String("server", s.config.Name),
			zap.Int("tools", len(s.tools)),
		)
	}
	return &Runtime{servers: servers, tools: exported}, nil
}

// Tools returns the exported tools in registration order.
func (r *Runtime) Tools() []tools.Tool {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tools.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Close ends every session. It is safe to call more than once.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	servers := r.servers
	r.servers = nil
	r.tools = nil
	r.mu.Unlock()
	return closeServers(servers)
}

func enabledCount(configs []ServerConfig) int {
	n := 0
	for _, cfg := range configs {
		if !cfg.Disabled {
			n++
		}
	}
	return n
}
