package gateway

import (
	"context"
	"errors"
	"strings"
)

// Turn is the outcome of one collected turn.
type Turn struct {
	// Text is every TextFragment concatenated in arrival order.
	Text string
	// Events counts all events before TurnComplete.
	Events int
	// Tools counts tool invocations.
	Tools      int
	StopReason string
}

var errTurnTruncated = errors.New("turn ended without completion")

// Collect drains one turn's events. observe, when set, sees every event
// except TurnComplete in arrival order. The error is the turn's own
// failure, a truncated stream, or ctx's error.
func Collect(ctx context.Context, events <-chan Event, observe func(Event)) (Turn, error) {
	var (
		turn Turn
		b    strings.Builder
	)
	for {
		select {
		case <-ctx.Done():
			turn.Text = b.String()
			return turn, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				turn.Text = b.String()
				if err := ctx.Err(); err != nil {
					return turn, err
				}
				return turn, errTurnTruncated
			}
			if done, isDone := ev.(TurnComplete); isDone {
				turn.Text = b.String()
				turn.StopReason = done.StopReason
				return turn, done.Err
			}
			turn.Events++
			switch v := ev.(type) {
			case TextFragment:
				b.WriteString(v.Text)
			case ToolInvocation:
				turn.Tools++
			}
			if observe != nil {
				observe(ev)
			}
		}
	}
}
