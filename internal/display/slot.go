package display

import (
	"context"
	"sync"
)

// inputSlot holds at most one outstanding prompt. A prompt is armed,
// resolved exactly once by a submitted line, then discarded.
type inputSlot struct {
	mu       sync.Mutex
	pending  chan string
	question string
}

// arm claims the slot. It fails before creating anything when a prompt is
// already outstanding.
func (s *inputSlot) arm(question string) (<-chan string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return nil, ErrPromptPending
	}
	s.pending = make(chan string, 1)
	s.question = question
	return s.pending, nil
}

// resolve hands text to the outstanding prompt and empties the slot. It
// reports false when nothing was armed.
func (s *inputSlot) resolve(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return false
	}
	s.pending <- text
	s.pending = nil
	s.question = ""
	return true
}

// disarm abandons ch if it is still the outstanding prompt.
func (s *inputSlot) disarm(ch <-chan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil && (<-chan string)(s.pending) == ch {
		s.pending = nil
		s.question = ""
	}
}

func (s *inputSlot) armed() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.question, s.pending != nil
}

// await waits for the armed prompt to resolve, abandoning it when ctx or
// closed ends first.
func (s *inputSlot) await(ctx context.Context, ch <-chan string, closed <-chan struct{}) (string, error) {
	select {
	case text := <-ch:
		return text, nil
	case <-ctx.Done():
		s.disarm(ch)
		return "", ctx.Err()
	case <-closed:
		s.disarm(ch)
		select {
		case text := <-ch:
			return text, nil
		default:
		}
		return "", ErrClosed
	}
}
