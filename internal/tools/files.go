package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"overkill/internal/llm"
	"overkill/internal/util"
)

const (
	defaultReadMaxLines   = 2000
	defaultGlobMaxEntries = 500
)

type ReadTool struct {
	Workspace Workspace
}

type readArgs struct {
	Path            string `json:"path"`
	StartLine       int    `json:"start_line"`
	EndLine         int    `json:"end_line"`
	WithLineNumbers bool   `json:"with_line_numbers"`
}

func (t *ReadTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionDef{
			Name:        NameRead,
			Description: "Read a text file from the repository. Paths are relative to the repository root. Supports line ranges and optional line numbers; at most 2000 lines are returned per call.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":              map[string]interface{}{"type": "string"},
					"start_line":        map[string]interface{}{"type": "integer"},
					"end_line":          map[string]interface{}{"type": "integer"},
					"with_line_numbers": map[string]interface{}{"type": "boolean"},
				},
				"required": []string{"path"},
			},
		},
	}
}

func (t *ReadTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in readArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Path) == "" {
		return "", errors.New("path is required")
	}
	data, err := os.ReadFile(t.Workspace.Resolve(in.Path))
	if err != nil {
		return "", err
	}
	lines := splitLines(string(data))
	if len(lines) == 0 {
		return "", nil
	}

	start := in.StartLine
	end := in.EndLine
	if start <= 0 {
		start = 1
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return "", fmt.Errorf("invalid line range: %d-%d", start, end)
	}
	truncated := false
	if end-start+1 > defaultReadMaxLines {
		end = start + defaultReadMaxLines - 1
		truncated = true
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		line := lines[i-1]
		if in.WithLineNumbers {
			fmt.Fprintf(&b, "%d: %s", i, line)
		} else {
			b.WriteString(line)
		}
		if i != end {
			b.WriteString("\n")
		}
	}
	if truncated {
		fmt.Fprintf(&b, "\n... (%d more lines; use start_line to continue)", len(lines)-end)
	}
	return b.String(), nil
}

type GlobTool struct {
	Workspace Workspace
}

type globArgs struct {
	Pattern       string `json:"pattern"`
	Path          string `json:"path"`
	MaxEntries    int    `json:"max_entries"`
	IncludeHidden bool   `json:"include_hidden"`
}

func (t *GlobTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionDef{
			Name:        NameGlob,
			Description: "Find files by glob pattern, e.g. `**/*.go` or `cmd/*/main.go`. `**` matches any number of directories. Results are sorted paths relative to the search root.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pattern": map[string]interface{}{
						"type":        "string",
						"description": "Glob pattern using / separators",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Directory to search (default: repository root)",
					},
					"max_entries": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of paths to return (default: 500)",
					},
					"include_hidden": map[string]interface{}{
						"type":        "boolean",
						"description": "Include hidden files and directories",
					},
				},
				"required": []string{"pattern"},
			},
		},
	}
}

func (t *GlobTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in globArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	pattern := strings.TrimSpace(filepath.ToSlash(in.Pattern))
	if pattern == "" {
		return "", errors.New("pattern is required")
	}
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid pattern: %q", in.Pattern)
	}
	if in.MaxEntries <= 0 {
		in.MaxEntries = defaultGlobMaxEntries
	}

	root := t.Workspace.Resolve(in.Path)
	results := make([]string, 0, 64)
	stopErr := errors.New("max entries reached")
	truncated := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if !in.IncludeHidden && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			return nil
		}
		if len(results) >= in.MaxEntries {
			truncated = true
			return stopErr
		}
		results = append(results, rel)
		return nil
	})
	if err != nil && !errors.Is(err, stopErr) {
		return "", err
	}

	if len(results) == 0 {
		return "(no matches)", nil
	}
	sort.Strings(results)
	out := strings.Join(results, "\n")
	if truncated {
		out += fmt.Sprintf("\n... (truncated at %d entries)", in.MaxEntries)
	}
	return out, nil
}

type WriteTool struct {
	Workspace Workspace
}

type writeArgs struct {
	Path         string   `json:"path"`
	Content      *string  `json:"content"`
	ContentLines []string `json:"content_lines"`
	Append       bool     `json:"append"`
}

func (t *WriteTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionDef{
			Name:        NameWrite,
			Description: "Write content to a file, creating parent directories.\n\nIMPORTANT: tool arguments MUST be valid JSON. Do NOT output raw file content outside the JSON object.\n\nFor large files: write in multiple calls (first append=false, then append=true) to avoid truncated arguments.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{"type": "string"},
					"content": map[string]interface{}{
						"type":        "string",
						"description": "Raw text content as a JSON string. Provide exactly one of content or content_lines.",
					},
					"content_lines": map[string]interface{}{
						"type":        "array",
						"description": "Array of lines joined with \"\\n\". Helps avoid JSON escaping issues.",
						"items":       map[string]interface{}{"type": "string"},
					},
					"append": map[string]interface{}{
						"type":        "boolean",
						"description": "Append instead of overwrite. Use append=true for chunks after the first one.",
					},
				},
				"additionalProperties": false,
				"required":             []string{"path"},
			},
		},
	}
}

func (t *WriteTool) Target(args json.RawMessage) (string, error) {
	var in writeArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("Write: invalid JSON arguments (possibly truncated). Args MUST be a single JSON object like {\"path\":\"...\",\"content\":\"...\"}: %w", err)
	}
	if strings.TrimSpace(in.Path) == "" {
		return "", errors.New("path is required")
	}
	return t.Workspace.Resolve(in.Path), nil
}

func (t *WriteTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	path, err := t.Target(args)
	if err != nil {
		return "", err
	}
	var in writeArgs
	_ = json.Unmarshal(args, &in)

	contentSources := 0
	if in.Content != nil {
		contentSources++
	}
	if in.ContentLines != nil {
		contentSources++
	}
	if contentSources == 0 {
		return "", errors.New("content is required: provide content or content_lines")
	}
	if contentSources > 1 {
		return "", errors.New("provide only one of content or content_lines")
	}
	if err := util.EnsureParentDir(path); err != nil {
		return "", err
	}
	var data []byte
	switch {
	case in.ContentLines != nil:
		data = []byte(strings.Join(in.ContentLines, "\n"))
	case in.Content != nil:
		data = []byte(*in.Content)
	}

	if in.Append {
		if err := util.AppendFile(path, data); err != nil {
			return "", err
		}
		return fmt.Sprintf("appended %d bytes to %s", len(data), path), nil
	}
	if err := util.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(data), path), nil
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lines := make([]string, 0, 128)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) == 0 && content != "" {
		return []string{content}
	}
	return lines
}
