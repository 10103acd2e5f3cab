package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"overkill/internal/gateway"
	"overkill/internal/workflow"
)

// endingTokens end the conversation wherever they appear in the input,
// in any case.
var endingTokens = []string{"done", "exit", "quit", "finish"}

// IsReady reports whether an agent reply asks to move on to writing the
// specification. It is a trigger for a confirmation, nothing more.
func IsReady(response string) bool {
	return strings.Contains(response, ReadyMarker) ||
		strings.Contains(strings.ToLower(response), "ready to generate")
}

// IsEnding reports whether human input ends the conversation.
func IsEnding(input string) bool {
	lower := strings.ToLower(input)
	for _, tok := range endingTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func isAffirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y", "done":
		return true
	}
	return false
}

type loopState int

const (
	awaitingAgent loopState = iota
	awaitingHuman
	loopDone
)

// turnLoop is the Engineer conversation: agent turns alternate with human
// input until either side ends it.
type turnLoop struct {
	o       *Orchestrator
	session gateway.Session
	result  *EngineeringSession
	logger  *zap.Logger

	state   loopState
	message string
	// pending is human input already collected and shown, to be handled
	// as the next answer without asking again.
	pending *string
}

func (o *Orchestrator) engineer(ctx context.Context, analysis RepositoryAnalysis, feature string) (*EngineeringSession, error) {
	o.Reporter.SetAgentStatus(engineerName, "Starting session...")
	sess, closeSession, err := o.open(ctx, gateway.SessionConfig{
		Name:         "engineer",
		SystemPrompt: engineerSystemPrompt,
		Profile:      gateway.ProfileConverse,
		Permission:   gateway.PermissionPolicy{Mode: gateway.PermissionDefault},
		WorkDir:      analysis.SourcePath,
	})
	if err != nil {
		return nil, err
	}
	defer closeSession()

	o.Reporter.LogActivity("Engineering session started", iconTarget)
	o.Reporter.LogActivity("Feature: "+clip(feature, 50), iconInfo)

	loop := &turnLoop{
		o:       o,
		session: sess,
		result:  &EngineeringSession{Analysis: analysis, FeatureRequest: feature},
		logger:  o.logger().Named("engineer"),
		state:   awaitingAgent,
		message: engineerOpening(analysis, feature),
	}
	if err := loop.run(ctx); err != nil {
		return nil, err
	}

	o.Reporter.SetAgentStatus(engineerName, "Session complete")
	o.Reporter.LogActivity("Engineering session complete", iconOK)
	return loop.result, nil
}

func (l *turnLoop) run(ctx context.Context) error {
	for l.state != loopDone {
		var err error
		switch l.state {
		case awaitingAgent:
			err = l.agentTurn(ctx)
		case awaitingHuman:
			err = l.humanTurn(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *turnLoop) agentTurn(ctx context.Context) error {
	rep := l.o.Reporter
	rep.SetAgentStatus(engineerName, "Thinking...")
	rep.LogActivity("Waiting for agent response...", iconWait)

	turn, err := l.o.turn(ctx, l.session, l.message)
	if err != nil {
		return err
	}
	response := turn.Text
	rep.LogActivity(fmt.Sprintf("Response length: %d", len(response)), iconWrite)

	if response == "" {
		if turn.Events == 0 {
			l.logger.Info("agent produced an empty turn; ending conversation")
			l.state = loopDone
			return nil
		}
		l.state = awaitingHuman
		return nil
	}

	rep.AddMessage(workflow.RoleAgent, response)
	l.result.Transcript.Append(workflow.RoleAgent, response)
	l.state = awaitingHuman

	if !IsReady(response) {
		return nil
	}
	rep.AddMessage(workflow.RoleAgent, readyQuestion)
	answer, err := l.ask(ctx, readyQuestion)
	if err != nil {
		return err
	}
	if strings.TrimSpace(answer) != "" {
		rep.AddMessage(workflow.RoleUser, answer)
	}
	if isAffirmative(answer) {
		l.logger.Debug("readiness confirmed")
		l.state = loopDone
		return nil
	}
	l.pending = &answer
	return nil
}

func (l *turnLoop) humanTurn(ctx context.Context) error {
	var (
		input string
		shown bool
	)
	if l.pending != nil {
		input, shown = *l.pending, true
		l.pending = nil
	} else {
		var err error
		if input, err = l.ask(ctx, ""); err != nil {
			return err
		}
	}

	// Blank input asks again without touching the transcript.
	if strings.TrimSpace(input) == "" {
		return nil
	}
	if IsEnding(input) {
		l.logger.Debug("conversation ended by user", zap.String("input", input))
		l.state = loopDone
		return nil
	}

	if !shown {
		l.o.Reporter.AddMessage(workflow.RoleUser, input)
	}
	l.result.Transcript.Append(workflow.RoleUser, input)
	l.message = input
	l.state = awaitingAgent
	return nil
}

func (l *turnLoop) ask(ctx context.Context, question string) (string, error) {
	l.o.Reporter.SetAgentStatus(engineerName, "Waiting for your input...")
	if l.o.Input == nil {
		return "", fmt.Errorf("pipeline: no input source configured")
	}
	return l.o.Input.Next(ctx, question)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
