package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"overkill/internal/tools"
)

// toolPolicy decides, per call, whether a session may run a tool. A
// refusal is reported back to the agent as a failed tool result; it never
// aborts the turn.
type toolPolicy struct {
	profile    Profile
	permission PermissionPolicy
	external   map[string]bool
}

func newToolPolicy(profile Profile, permission PermissionPolicy, external []string) toolPolicy {
	p := toolPolicy{profile: profile, permission: permission}
	if profile.External && len(external) > 0 {
		p.external = make(map[string]bool, len(external))
		for _, name := range external {
			p.external[name] = true
		}
	}
	return p
}

func (p toolPolicy) toolVisible(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	return p.profile.allows(name) || p.external[name]
}

func (p toolPolicy) allowTool(tool tools.Tool, name string, args json.RawMessage) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("tool name is empty")
	}
	if !p.toolVisible(name) || tool == nil {
		return fmt.Errorf("tool %q is not available in this session", name)
	}
	mutating, ok := tool.(tools.Mutating)
	if !ok {
		return nil
	}
	if p.permission.Mode != PermissionAcceptEdits {
		return fmt.Errorf("tool %q modifies files and this session is read-only", name)
	}
	target, err := mutating.Target(args)
	if err != nil {
		return err
	}
	if !p.permission.writable(target) {
		return fmt.Errorf("writes are restricted to %s; refused %s", p.permission.describeWritable(), target)
	}
	return nil
}
