package mcpclient

import (
	"context"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestMakeLocalToolName(t *testing.T) {
	cases := []struct {
		server, tool, want string
	}{
		{"docs", "search", "docs__search"},
		{"my docs", "find.page", "my_docs__find_page"},
		{"", "search", "search"},
		{"docs", "", "docs"},
		{"", "", ""},
	}
	for _, tc := range cases {
		if got := makeLocalToolName(tc.server, tc.tool); got != tc.want {
			t.Errorf("makeLocalToolName(%q, %q) = %q, want %q", tc.server, tc.tool, got, tc.want)
		}
	}
}

func TestTransportFromConfig(t *testing.T) {
	if _, err := transportFromConfig(ServerConfig{Name: "x"}); err == nil {
		t.Fatalf("expected error for command transport without command")
	}
	if _, err := transportFromConfig(ServerConfig{Name: "x", Transport: "sse"}); err == nil {
		t.Fatalf("expected error for sse transport without url")
	}
	if _, err := transportFromConfig(ServerConfig{Name: "x", Transport: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unknown transport")
	}

	tr, err := transportFromConfig(ServerConfig{Name: "x", Command: "mcp-server", Args: []string{"--stdio"}, Env: map[string]string{"K": "V"}})
	if err != nil {
		t.Fatalf("command transport: %v", err)
	}
	cmdTr, ok := tr.(*mcp.CommandTransport)
	if !ok {
		t.Fatalf("expected *mcp.CommandTransport, got %T", tr)
	}
	found := false
	for _, kv := range cmdTr.Command.Env {
		if kv == "K=V" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected K=V in command env")
	}
}

func TestToolsFromServersRejectsDuplicates(t *testing.T) {
	servers := []*server{
		{config: ServerConfig{Name: "docs"}, tools: []*mcp.Tool{{Name: "search"}, {Name: "search"}}},
	}
	tools, err := toolsFromServers(servers)
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if err == nil || !strings.Contains(err.Error(), "duplicate tool name: docs__search") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	def := tools[0].Definition()
	if def.Function.Name != "docs__search" {
		t.Fatalf("unexpected name %q", def.Function.Name)
	}
	if !strings.HasPrefix(def.Function.Description, "MCP tool from docs") {
		t.Fatalf("unexpected description %q", def.Function.Description)
	}
}

func TestFormatCallToolResult(t *testing.T) {
	out, err := formatCallToolResult(&mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "a"}, &mcp.TextContent{Text: "b"}},
	})
	if err != nil || out != "a\nb" {
		t.Fatalf("unexpected result %q, %v", out, err)
	}

	_, err = formatCallToolResult(&mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: "boom"}},
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected tool error boom, got %v", err)
	}
}

func TestConnectWithoutServers(t *testing.T) {
	rt, err := Connect(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(rt.Tools()) != 0 {
		t.Fatalf("expected no tools")
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestConnectFailsWhenNoServerComesUp(t *testing.T) {
	_, err := Connect(context.Background(), []ServerConfig{{Name: "broken", Transport: "sse"}}, nil)
	if err == nil {
		t.Fatalf("expected error when every server fails")
	}
}
