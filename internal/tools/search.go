package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"overkill/internal/llm"
)

const (
	defaultGrepMaxResults   = 200
	defaultGrepMaxFileBytes = 1 << 20
	maxGrepLineRunes        = 300
)

// GrepTool searches file contents with a regular expression.
type GrepTool struct {
	Workspace Workspace
}

type grepArgs struct {
	Pattern       string `json:"pattern"`
	Path          string `json:"path"`
	Glob          string `json:"glob"`
	CaseSensitive *bool  `json:"case_sensitive"`
	IncludeHidden bool   `json:"include_hidden"`
	MaxResults    int    `json:"max_results"`
}

type lineMatch struct {
	Line int
	Text string
}

type grepStats struct {
	scannedFiles  int
	skippedLarge  int
	skippedBinary int
	skippedError  int
	matches       []string
	truncated     bool
}

func (t *GrepTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionDef{
			Name:        NameGrep,
			Description: "Search file contents with a regular expression (RE2 syntax). Returns `path:line:text` matches relative to the search root.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pattern": map[string]interface{}{
						"type":        "string",
						"description": "Regular expression, e.g. `func\\s+New\\w*` or `TODO|FIXME`.",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "File or directory to search (default: repository root).",
					},
					"glob": map[string]interface{}{
						"type":        "string",
						"description": "Only search files whose relative path matches this glob, e.g. `**/*.go`.",
					},
					"case_sensitive": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether matching is case-sensitive (default: true).",
					},
					"include_hidden": map[string]interface{}{
						"type":        "boolean",
						"description": "Include hidden files/directories (default: false).",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum matched lines to return (default: 200).",
					},
				},
				"required":             []string{"pattern"},
				"additionalProperties": false,
			},
		},
	}
}

func (t *GrepTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in grepArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	expr := in.Pattern
	if strings.TrimSpace(expr) == "" {
		return "", errors.New("pattern is required")
	}
	if in.CaseSensitive != nil && !*in.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}
	if in.MaxResults <= 0 {
		in.MaxResults = defaultGrepMaxResults
	}
	glob := strings.TrimSpace(filepath.ToSlash(in.Glob))
	if glob != "" && !doublestar.ValidatePattern(glob) {
		return "", fmt.Errorf("invalid glob: %q", in.Glob)
	}

	root := t.Workspace.Resolve(in.Path)
	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}

	stats := grepStats{matches: make([]string, 0, 32)}
	stopErr := errors.New("max results reached")

	processFile := func(path, rel string, size int64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.scannedFiles++
		if size > defaultGrepMaxFileBytes {
			stats.skippedLarge++
			return nil
		}
		lines, isBinary, err := grepFile(ctx, path, re)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			stats.skippedError++
			return nil
		}
		if isBinary {
			stats.skippedBinary++
			return nil
		}
		for _, line := range lines {
			stats.matches = append(stats.matches, fmt.Sprintf("%s:%d:%s", rel, line.Line, line.Text))
			if len(stats.matches) >= in.MaxResults {
				stats.truncated = true
				return stopErr
			}
		}
		return nil
	}

	if !info.IsDir() {
		err = processFile(root, filepath.ToSlash(filepath.Base(root)), info.Size())
	} else {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				stats.skippedError++
				return nil
			}
			if path == root {
				return nil
			}
			if !in.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)
			if glob != "" {
				if ok, _ := doublestar.Match(glob, rel); !ok {
					return nil
				}
			}
			fileInfo, infoErr := d.Info()
			if infoErr != nil {
				stats.skippedError++
				return nil
			}
			return processFile(path, rel, fileInfo.Size())
		})
	}
	if err != nil && !errors.Is(err, stopErr) {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "scanned_files: %d\n", stats.scannedFiles)
	fmt.Fprintf(&b, "matched_lines: %d\n", len(stats.matches))
	fmt.Fprintf(&b, "truncated: %t\n", stats.truncated)
	if stats.skippedLarge+stats.skippedBinary+stats.skippedError > 0 {
		fmt.Fprintf(&b, "skipped: large=%d binary=%d error=%d\n", stats.skippedLarge, stats.skippedBinary, stats.skippedError)
	}
	if len(stats.matches) == 0 {
		b.WriteString("(no matches)")
		return b.String(), nil
	}
	b.WriteString("results:\n")
	b.WriteString(strings.Join(stats.matches, "\n"))
	return b.String(), nil
}

func grepFile(ctx context.Context, path string, re *regexp.Regexp) ([]lineMatch, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 8192)
	sample, err := reader.Peek(8192)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, false, err
	}
	if isLikelyBinary(sample) {
		return nil, true, nil
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	results := make([]lineMatch, 0, 8)
	lineNumber := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		lineNumber++
		text := scanner.Text()
		if re.MatchString(text) {
			results = append(results, lineMatch{Line: lineNumber, Text: clipLine(text)})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}
	return results, false, nil
}

func clipLine(s string) string {
	r := []rune(s)
	if len(r) <= maxGrepLineRunes {
		return s
	}
	return string(r[:maxGrepLineRunes]) + "..."
}

func isLikelyBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}
	control := 0
	for _, b := range data {
		if b < 0x09 || (b > 0x0D && b < 0x20) {
			control++
		}
	}
	return float64(control)/float64(len(data)) > 0.2
}
