package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"overkill/internal/appinfo"
)

// ServerConfig describes one MCP server entry under mcp_servers in the
// config file.
type ServerConfig struct {
	Name       string            `yaml:"name"`
	Transport  string            `yaml:"transport"`
	Command    string            `yaml:"command"`
	Args       []string          `yaml:"args,omitempty"`
	Dir        string            `yaml:"dir,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
	InheritEnv *bool             `yaml:"inherit_env,omitempty"`
	URL        string            `yaml:"url,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Disabled   bool              `yaml:"disabled,omitempty"`
}

type server struct {
	config  ServerConfig
	session *mcp.ClientSession
	tools   []*mcp.Tool
}

func (s *server) close() error {
	if s == nil || s.session == nil {
		return nil
	}
	return s.session.Close()
}

// connectServers connects every enabled server. Servers that fail are
// skipped and reported in the returned error alongside the ones that
// connected.
func connectServers(ctx context.Context, configs []ServerConfig) ([]*server, error) {
	if len(configs) == 0 {
		return nil, nil
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    strings.ToLower(appinfo.Name),
		Version: appinfo.Version,
	}, nil)

	servers := make([]*server, 0, len(configs))
	errs := make([]string, 0)
	seen := make(map[string]bool)

	for _, cfg := range configs {
		if cfg.Disabled {
			continue
		}
		name := strings.TrimSpace(cfg.Name)
		if name == "" {
			errs = append(errs, "server name is required")
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("duplicate server name: %s", name))
			continue
		}
		seen[name] = true

		transport, err := transportFromConfig(cfg)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		session, err := client.Connect(ctx, transport, nil)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s connect: %v", name, err))
			continue
		}
		tools, err := listAllTools(ctx, session)
		if err != nil {
			_ = session.Close()
			errs = append(errs, fmt.Sprintf("%s list tools: %v", name, err))
			continue
		}
		servers = append(servers, &server{config: cfg, session: session, tools: tools})
	}

	if len(errs) > 0 {
		return servers, fmt.Errorf("mcp: %s", strings.Join(errs, "; "))
	}
	return servers, nil
}

func closeServers(servers []*server) error {
	errs := make([]string, 0)
	for _, s := range servers {
		if s == nil {
			continue
		}
		if err := s.close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.config.Name, err))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func listAllTools(ctx context.Context, session *mcp.ClientSession) ([]*mcp.Tool, error) {
	tools := make([]*mcp.Tool, 0)
	cursor := ""
	for {
		params := &mcp.ListToolsParams{}
		if cursor != "" {
			params.Cursor = cursor
		}
		res, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}
	return tools, nil
}

func transportFromConfig(cfg ServerConfig) (mcp.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", "command", "stdio":
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, errors.New("command is required for command transport")
		}
		cmd := exec.Command(cfg.Command, cfg.Args...)
		if strings.TrimSpace(cfg.Dir) != "" {
			cmd.Dir = cfg.Dir
		}
		if cfg.InheritEnv == nil || *cfg.InheritEnv || len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
		}
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	case "sse":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, errors.New("url is required for sse transport")
		}
		return &mcp.SSEClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: httpClientWithHeaders(cfg.Headers),
		}, nil
	case "streamable_http", "streamable", "http":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, errors.New("url is required for streamable_http transport")
		}
		return &mcp.StreamableClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: httpClientWithHeaders(cfg.Headers),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}

type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := h.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	for k, v := range h.headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return base.RoundTrip(req)
}

func httpClientWithHeaders(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return nil
	}
	return &http.Client{
		Transport: &headerRoundTripper{base: http.DefaultTransport, headers: headers},
	}
}
