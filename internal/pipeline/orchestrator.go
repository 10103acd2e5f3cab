package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"overkill/internal/gateway"
	"overkill/internal/workflow"
)

// Activity icons.
const (
	iconSearch  = "🔍"
	iconTarget  = "🎯"
	iconInfo    = "📋"
	iconWait    = "⏳"
	iconWrite   = "📝"
	iconOK      = "✅"
	iconDone    = "🎉"
	iconError   = "❌"
	iconWarn    = "⚠️"
	iconCleanup = "🧹"
	iconTool    = "🔧"
	iconResult  = "📊"
	iconOutline = "📄"
)

// Reporter is the display side of a run. Calls must not block.
type Reporter interface {
	SetPhase(phase workflow.Phase)
	SetAgentStatus(name, status string)
	LogActivity(message, icon string)
	AddMessage(role workflow.Role, content string)
}

// Checkout is the staged repository a run reads. Release is called once
// the run ends, whatever the outcome.
type Checkout interface {
	Dir() string
	Temporary() bool
	Release() error
}

type Request struct {
	Checkout Checkout
	Feature  string
	// OutputPath is where Crystallize writes the specification. Relative
	// paths resolve against the process working directory.
	OutputPath string
}

type Orchestrator struct {
	Gateway  gateway.Gateway
	Reporter Reporter
	Input    InputSource
	Logger   *zap.Logger

	machine workflow.Machine
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() workflow.State {
	return o.machine.Current()
}

// Run executes Explore, Engineer and Crystallize in order. Any phase
// failure moves the run to Errored, is reported once to the activity log
// and is returned. The checkout is released on every path.
func (o *Orchestrator) Run(ctx context.Context, req Request) (res Result, err error) {
	logger := o.logger()
	if req.Checkout != nil {
		defer o.release(req.Checkout)
	}
	defer func() {
		if err == nil {
			return
		}
		_ = o.machine.Transition(workflow.StateErrored)
		logger.Error("pipeline failed", zap.Error(err))
		o.Reporter.LogActivity("Error: "+err.Error(), iconError)
	}()

	if req.Checkout == nil {
		return res, errors.New("pipeline: no repository checkout")
	}
	feature := strings.TrimSpace(req.Feature)
	if feature == "" {
		return res, errors.New("pipeline: feature request is empty")
	}
	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		output = "SPEC.md"
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return res, fmt.Errorf("pipeline: resolve output path: %w", err)
	}

	if err := o.enter(workflow.StateExploring); err != nil {
		return res, err
	}
	res.Analysis, err = o.explore(ctx, req.Checkout.Dir())
	if err != nil {
		return res, &PhaseError{Phase: workflow.PhaseExplore, Err: err}
	}

	if err := o.enter(workflow.StateEngineering); err != nil {
		return res, err
	}
	res.Session, err = o.engineer(ctx, res.Analysis, feature)
	if err != nil {
		return res, &PhaseError{Phase: workflow.PhaseEngineer, Err: err}
	}

	if err := o.enter(workflow.StateCrystallizing); err != nil {
		return res, err
	}
	res.SpecPath, err = o.crystallize(ctx, res.Session, output)
	if err != nil {
		return res, &PhaseError{Phase: workflow.PhaseCrystallize, Err: err}
	}

	if err := o.machine.Transition(workflow.StateDone); err != nil {
		return res, err
	}
	logger.Info("pipeline complete", zap.String("spec", res.SpecPath), zap.Int("turns", res.Session.Transcript.Len()))
	o.Reporter.LogActivity("SPEC.md generated at: "+res.SpecPath, iconDone)
	return res, nil
}

func (o *Orchestrator) enter(state workflow.State) error {
	if err := o.machine.Transition(state); err != nil {
		return err
	}
	o.Reporter.SetPhase(state.Phase())
	o.logger().Debug("phase started", zap.Stringer("phase", state.Phase()))
	return nil
}

func (o *Orchestrator) release(co Checkout) {
	if co.Temporary() {
		o.Reporter.LogActivity("Cleaning up "+co.Dir()+"...", iconCleanup)
	}
	if err := co.Release(); err != nil {
		o.logger().Warn("release failed", zap.Error(err))
	}
}

// open starts an agent session and closes it when the phase is done.
func (o *Orchestrator) open(ctx context.Context, cfg gateway.SessionConfig) (gateway.Session, func(), error) {
	if o.Gateway == nil {
		return nil, nil, &gateway.SessionError{Session: cfg.Name, Err: errors.New("no gateway configured")}
	}
	sess, err := o.Gateway.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return sess, func() {
		if err := sess.Close(); err != nil {
			o.logger().Debug("session close failed", zap.String("session", cfg.Name), zap.Error(err))
		}
	}, nil
}

// turn sends one message and collects the reply, forwarding tool activity
// to the activity log as it arrives.
func (o *Orchestrator) turn(ctx context.Context, sess gateway.Session, message string) (gateway.Turn, error) {
	events, err := sess.Send(ctx, message)
	if err != nil {
		return gateway.Turn{}, err
	}
	return gateway.Collect(ctx, events, o.forward)
}

func (o *Orchestrator) forward(ev gateway.Event) {
	switch v := ev.(type) {
	case gateway.ToolInvocation:
		o.Reporter.LogActivity(gateway.DescribeInvocation(v), iconTool)
	case gateway.ToolResult:
		if preview := gateway.PreviewResult(v); preview != "" {
			o.Reporter.LogActivity(preview, iconResult)
		}
	case gateway.Passthrough:
		msg := "Unhandled agent event: " + v.Kind
		if strings.TrimSpace(v.Detail) != "" {
			msg += " (" + v.Detail + ")"
		}
		o.Reporter.LogActivity(msg, iconWarn)
	}
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
