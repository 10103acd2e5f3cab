// Package pipeline runs the Explore, Engineer and Crystallize phases that
// turn a feature request into a written specification.
package pipeline

import (
	"strings"

	"overkill/internal/workflow"
)

// RepositoryAnalysis is the Explore phase's reading of the repository.
type RepositoryAnalysis struct {
	Summary    string
	SourcePath string
}

type ConversationTurn struct {
	Role    workflow.Role
	Content string
}

// Transcript is the append-only record of the Engineer conversation.
type Transcript struct {
	turns []ConversationTurn
}

func (t *Transcript) Append(role workflow.Role, content string) {
	t.turns = append(t.turns, ConversationTurn{Role: role, Content: content})
}

// Turns returns a copy of the recorded turns in conversation order.
func (t *Transcript) Turns() []ConversationTurn {
	return append([]ConversationTurn(nil), t.turns...)
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

// Count returns how many turns role authored.
func (t *Transcript) Count(role workflow.Role) int {
	n := 0
	for _, turn := range t.turns {
		if turn.Role == role {
			n++
		}
	}
	return n
}

// Render formats the transcript as "ROLE: content" blocks separated by
// blank lines.
func (t *Transcript) Render() string {
	blocks := make([]string, 0, len(t.turns))
	for _, turn := range t.turns {
		blocks = append(blocks, turn.Role.Label()+": "+turn.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// EngineeringSession is everything Crystallize needs from Engineer. It is
// not modified once Engineer returns it.
type EngineeringSession struct {
	Transcript     Transcript
	Analysis       RepositoryAnalysis
	FeatureRequest string
}

// Result is what a completed run produced.
type Result struct {
	Analysis RepositoryAnalysis
	Session  *EngineeringSession
	SpecPath string
}
