package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"overkill/internal/gateway"
	"overkill/internal/specdoc"
	"overkill/internal/util"
)

const (
	explorerName    = "RepoExplorer"
	engineerName    = "VibeEngineer"
	crystallizeName = "Crystallizer"
)

func (o *Orchestrator) explore(ctx context.Context, dir string) (RepositoryAnalysis, error) {
	o.Reporter.SetAgentStatus(explorerName, "Initializing...")
	sess, closeSession, err := o.open(ctx, gateway.SessionConfig{
		Name:         "explore",
		SystemPrompt: exploreSystemPrompt,
		Profile:      gateway.ProfileExplore,
		Permission:   gateway.PermissionPolicy{Mode: gateway.PermissionDefault},
		WorkDir:      dir,
	})
	if err != nil {
		return RepositoryAnalysis{}, err
	}
	defer closeSession()

	o.Reporter.SetAgentStatus(explorerName, "Analyzing repository...")
	o.Reporter.LogActivity("Starting repository analysis", iconSearch)

	turn, err := o.turn(ctx, sess, exploreAnalysisPrompt)
	if err != nil {
		return RepositoryAnalysis{}, err
	}
	if strings.TrimSpace(turn.Text) == "" {
		return RepositoryAnalysis{}, &gateway.SessionError{Session: "explore", Err: errors.New("agent returned no analysis")}
	}
	o.logger().Debug("analysis received", zap.Int("chars", len(turn.Text)), zap.Int("tools", turn.Tools))

	o.Reporter.SetAgentStatus(explorerName, "Analysis complete")
	o.Reporter.LogActivity("Repository analysis complete", iconOK)
	return RepositoryAnalysis{Summary: turn.Text, SourcePath: dir}, nil
}

// crystallize has the agent write the specification at output, an
// absolute path. A file the failed call created is removed again.
func (o *Orchestrator) crystallize(ctx context.Context, session *EngineeringSession, output string) (path string, err error) {
	o.Reporter.SetAgentStatus(crystallizeName, "Starting...")

	before := stampArtifact(output)
	defer func() {
		if err != nil && !before.exists && util.Exists(output) {
			if rmErr := os.Remove(output); rmErr != nil {
				o.logger().Warn("partial spec not removed", zap.String("path", output), zap.Error(rmErr))
			}
		}
	}()

	sess, closeSession, err := o.open(ctx, gateway.SessionConfig{
		Name:         "crystallize",
		SystemPrompt: crystallizeSystemPrompt,
		Profile:      gateway.ProfileWriteFile,
		Permission: gateway.PermissionPolicy{
			Mode:          gateway.PermissionAcceptEdits,
			WritablePaths: []string{output},
		},
		WorkDir: filepath.Dir(output),
	})
	if err != nil {
		return "", err
	}
	defer closeSession()

	o.Reporter.LogActivity("Generating SPEC.md...", iconWrite)
	o.Reporter.SetAgentStatus(crystallizeName, "Generating spec...")

	if _, err := o.turn(ctx, sess, crystallizePrompt(session, output)); err != nil {
		return "", err
	}
	if !before.changed(stampArtifact(output)) {
		return "", &gateway.SessionError{Session: "crystallize", Err: fmt.Errorf("agent finished without writing %s", output)}
	}

	o.Reporter.SetAgentStatus(crystallizeName, "Complete")
	o.Reporter.LogActivity("SPEC.md written to "+output, iconOK)
	o.reportOutline(output)
	return output, nil
}

func (o *Orchestrator) reportOutline(path string) {
	outline, err := specdoc.ReadFile(path)
	if err != nil {
		o.logger().Warn("spec outline failed", zap.Error(err))
		return
	}
	sections := outline.Sections()
	if len(sections) == 0 {
		o.Reporter.LogActivity(fmt.Sprintf("Spec has no section headings (%d bytes)", outline.Bytes), iconWarn)
		return
	}
	o.Reporter.LogActivity(fmt.Sprintf("%d sections: %s", len(sections), strings.Join(sections, ", ")), iconOutline)
}

// artifactStamp identifies one version of the output file, so a file left
// by an earlier run is not taken for this run's artifact.
type artifactStamp struct {
	exists  bool
	size    int64
	modTime time.Time
	sum     [sha256.Size]byte
}

func stampArtifact(path string) artifactStamp {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return artifactStamp{}
	}
	st := artifactStamp{exists: true, size: info.Size(), modTime: info.ModTime()}
	if data, err := os.ReadFile(path); err == nil {
		st.sum = sha256.Sum256(data)
	}
	return st
}

// changed reports whether next is a file written after s was taken.
func (s artifactStamp) changed(next artifactStamp) bool {
	switch {
	case !next.exists:
		return false
	case !s.exists:
		return true
	}
	return s.size != next.size || !s.modTime.Equal(next.modTime) || s.sum != next.sum
}
