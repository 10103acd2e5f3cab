package gateway

import (
	"fmt"
	"path/filepath"
	"strings"

	"overkill/internal/tools"
)

// Profile is the capability set granted to a session.
type Profile struct {
	Name         string
	Capabilities []string
	// External admits tools from configured MCP servers.
	External bool
}

var (
	// ProfileExplore can read, search and run commands in the repository.
	ProfileExplore = Profile{
		Name:         "explore",
		Capabilities: []string{tools.NameRead, tools.NameGrep, tools.NameGlob, tools.NameBash},
		External:     true,
	}
	// ProfileConverse grants nothing; the session is pure conversation.
	ProfileConverse = Profile{Name: "converse"}
	// ProfileWriteFile can only create files.
	ProfileWriteFile = Profile{
		Name:         "write-file",
		Capabilities: []string{tools.NameWrite},
	}
)

func (p Profile) allows(name string) bool {
	for _, c := range p.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

type PermissionMode string

const (
	// PermissionDefault refuses every mutating tool call.
	PermissionDefault PermissionMode = "default"
	// PermissionAcceptEdits lets mutating tools write to WritablePaths.
	PermissionAcceptEdits PermissionMode = "accept-edits"
)

type PermissionPolicy struct {
	Mode          PermissionMode
	WritablePaths []string
}

func (p PermissionPolicy) validate() error {
	switch p.Mode {
	case "", PermissionDefault:
		return nil
	case PermissionAcceptEdits:
		if len(p.WritablePaths) == 0 {
			return fmt.Errorf("permission mode %q needs at least one writable path", p.Mode)
		}
		for _, path := range p.WritablePaths {
			if !filepath.IsAbs(path) {
				return fmt.Errorf("writable path must be absolute: %s", path)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown permission mode %q", p.Mode)
	}
}

func (p PermissionPolicy) writable(target string) bool {
	if p.Mode != PermissionAcceptEdits {
		return false
	}
	target = filepath.Clean(target)
	for _, path := range p.WritablePaths {
		if filepath.Clean(path) == target {
			return true
		}
	}
	return false
}

func (p PermissionPolicy) describeWritable() string {
	return strings.Join(p.WritablePaths, ", ")
}
