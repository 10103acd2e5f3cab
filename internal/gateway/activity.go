package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"overkill/internal/tools"
)

const (
	maxTargetRunes  = 40
	maxResultChars  = 100
	maxPreviewRunes = 50
)

// targetKeys lists, per built-in tool, the input fields that name what
// the call operates on.
var targetKeys = map[string][]string{
	tools.NameRead:  {"path", "file_path"},
	tools.NameGrep:  {"pattern"},
	tools.NameGlob:  {"pattern"},
	tools.NameBash:  {"command"},
	tools.NameWrite: {"path", "file_path"},
}

// DescribeInvocation renders a tool call as one activity line, e.g.
// Read(internal/app/app.go).
func DescribeInvocation(ev ToolInvocation) string {
	keys, ok := targetKeys[ev.Name]
	if !ok {
		return ev.Name + "(...)"
	}
	var input map[string]any
	_ = json.Unmarshal(ev.Input, &input)
	target := ""
	for _, key := range keys {
		if v, ok := input[key].(string); ok && strings.TrimSpace(v) != "" {
			target = v
			break
		}
	}
	return fmt.Sprintf("%s(%s)", ev.Name, clipRunes(flatten(target), maxTargetRunes))
}

// PreviewResult summarises a tool result for the activity log. Long
// bodies become a line count; short ones are shown on one line. An empty
// successful result has no preview.
func PreviewResult(ev ToolResult) string {
	content := strings.TrimPrefix(ev.Content, "ERROR: ")
	prefix := "Result: "
	if ev.IsError {
		prefix = "Error: "
	}
	switch {
	case len(content) > maxResultChars:
		return fmt.Sprintf("%s%d lines", prefix, strings.Count(content, "\n")+1)
	case content == "":
		if ev.IsError {
			return strings.TrimSpace(prefix)
		}
		return ""
	}
	preview := flatten(content)
	if r := []rune(preview); len(r) > maxPreviewRunes {
		preview = string(r[:maxPreviewRunes]) + "..."
	}
	return prefix + preview
}

func clipRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func flatten(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
