package pipeline

import (
	"context"
	"sync"
	"time"
)

// TerminationPhrase is what a scripted source answers once its canned
// responses are used up.
const TerminationPhrase = "finish the session"

const DefaultDemoDelay = time.Second

// DefaultDemoResponses drive a demo run for the health-check example.
var DefaultDemoResponses = []string{
	"I want a lightweight health check endpoint that load balancers can poll, separate from any admin API.",
	"Keep it cheap: report process liveness plus a quick database ping, and return 503 when the database is unreachable.",
	"JSON body with status, version and uptime. No authentication, but keep it off the public docs.",
	"done",
}

// InputSource supplies the human side of the conversation.
type InputSource interface {
	// Next returns one line of input. question may be empty.
	Next(ctx context.Context, question string) (string, error)
}

// Prompter asks a person for one line of input.
type Prompter interface {
	PromptUser(ctx context.Context, question string) (string, error)
}

// Interactive reads answers from a person through a Prompter.
type Interactive struct {
	Prompter Prompter
}

func (i Interactive) Next(ctx context.Context, question string) (string, error) {
	return i.Prompter.PromptUser(ctx, question)
}

// Scripted answers from a fixed list, one entry per call, then returns
// TerminationPhrase forever. Each answer is delayed so the display can
// repaint between turns.
type Scripted struct {
	responses []string
	delay     time.Duration

	mu     sync.Mutex
	cursor int
}

func NewScripted(responses []string, delay time.Duration) *Scripted {
	return &Scripted{responses: append([]string(nil), responses...), delay: delay}
}

func (s *Scripted) Next(ctx context.Context, _ string) (string, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.responses) {
		return TerminationPhrase, nil
	}
	text := s.responses[s.cursor]
	s.cursor++
	return text, nil
}

// Consumed reports how many canned responses have been handed out.
func (s *Scripted) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
