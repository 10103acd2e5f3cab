package pipeline

import (
	"fmt"
	"strings"
)

// ReadyMarker is the token the Engineer agent emits once it has enough
// decisions to write the specification.
const ReadyMarker = "SPEC_READY"

const readyQuestion = "Ready to generate SPEC.md? (yes/no)"

const exploreSystemPrompt = `You are a senior software engineer analyzing a codebase. Focus on: stack, structure, patterns, conventions, and where features typically live.`

const exploreAnalysisPrompt = `Analyze this repository and provide:

1. **Stack**: What technologies, frameworks and languages are used?
2. **Structure**: How is the code organized? What are the main directories?
3. **Patterns**: Which architectural, naming and styling patterns recur?
4. **Conventions**: Code style and file organization conventions.
5. **Integration points**: Where would new features typically be added?

Be concise but thorough. Focus on actionable insights.`

const engineerSystemPrompt = `You are a senior software engineer helping turn a fuzzy feature idea into concrete decisions.

Your job is to ask questions that force explicit decisions. Present trade-offs as spectrums rather than binaries.

Style:
- Think aloud like an experienced engineer.
- Share your opinion, but let the user decide.
- Draw spectrums to show trade-offs, for example:

  Static ◆━━━━━━━━━━━━━━━◆ Fully interactive
  → faster, less JS          → more engaging, more complex

- Ask open-ended questions, never yes/no questions.
- Keep track of every decision made.

Flow:
1. Understand the feature deeply.
2. Present options with their trade-offs.
3. Help the user make explicit decisions.
4. Confirm your understanding.
5. When you have enough information, say "` + ReadyMarker + `" and summarize all decisions.

You are drawing decisions out of the user, not making them yourself.
The user will say "done" when they want to finish.`

const crystallizeSystemPrompt = `You are a technical writer creating executable specifications. Be precise, unambiguous and actionable.`

func engineerOpening(analysis RepositoryAnalysis, feature string) string {
	return fmt.Sprintf(`Repository Analysis:
%s

Feature Request: %s

Start the conversation. Ask your first question to understand what the user really wants.`, strings.TrimSpace(analysis.Summary), feature)
}

// crystallizePrompt assembles the summary, the feature request and the
// rendered transcript, in that order.
func crystallizePrompt(session *EngineeringSession, outputPath string) string {
	return fmt.Sprintf(`Based on this engineering session, write a specification file.

Repository Analysis:
%s

Original Feature Request:
%s

Conversation and Decisions:
%s

Create the file %s with the Write tool. It must include:

1. **Feature Summary**: what we are building and why.
2. **Technical Decisions**: every decision made during the conversation.
3. **Files to Create/Modify**: exact file paths and the change to each.
4. **Implementation Steps**: clear, ordered steps.
5. **Constraints**: what NOT to do and which patterns to follow.
6. **Acceptance Criteria**: how to verify the work is done.

Make it clear enough that any developer can execute it without asking questions.
Use the exact file paths and patterns from the repository analysis.`,
		strings.TrimSpace(session.Analysis.Summary),
		session.FeatureRequest,
		session.Transcript.Render(),
		outputPath,
	)
}
