package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"overkill/internal/llm"
	"overkill/internal/runlog"
	"overkill/internal/tools"
)

type agentSession struct {
	name        string
	model       Model
	registry    *tools.Registry
	policy      toolPolicy
	toolDefs    []llm.ToolDefinition
	maxRounds   int
	temperature float32
	logger      *zap.Logger

	mu      sync.Mutex
	busy    bool
	closed  bool
	history []llm.Message
}

var (
	errSessionClosed = errors.New("session is closed")
	errTurnInFlight  = errors.New("a turn is already in progress")
)

func (s *agentSession) Send(ctx context.Context, message string) (<-chan Event, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &SessionError{Session: s.name, Err: errors.New("message is empty")}
	}
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, &SessionError{Session: s.name, Err: errSessionClosed}
	case s.busy:
		s.mu.Unlock()
		return nil, &SessionError{Session: s.name, Err: errTurnInFlight}
	}
	s.busy = true
	history := append([]llm.Message(nil), s.history...)
	s.mu.Unlock()

	events := make(chan Event, 64)
	go func() {
		defer close(events)
		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		turn, stopReason, err := s.runTurn(ctx, history, message, emit)

		s.mu.Lock()
		s.busy = false
		if err == nil {
			s.history = append(s.history, turn...)
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Warn("turn failed", zap.Error(err))
			err = &SessionError{Session: s.name, Err: err}
		}
		emit(TurnComplete{StopReason: stopReason, Err: err})
	}()
	return events, nil
}

func (s *agentSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.history = nil
	s.mu.Unlock()
	return nil
}

// runTurn drives model rounds until the model answers without tool
// calls. It returns the messages the turn added to the conversation.
func (s *agentSession) runTurn(ctx context.Context, history []llm.Message, userText string, emit func(Event) bool) ([]llm.Message, string, error) {
	turn := []llm.Message{{Role: "user", Content: userText}}
	reqMessages := append(history, turn...)

	onDelta := func(text string) {
		if text != "" {
			emit(TextFragment{Text: text})
		}
	}

	for round := 0; ; round++ {
		if round >= s.maxRounds {
			return nil, "", fmt.Errorf("tool round limit (%d) reached", s.maxRounds)
		}
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		start := time.Now()
		resp, err := s.model.Stream(ctx, llm.ChatRequest{
			Messages:    reqMessages,
			Tools:       s.toolDefs,
			Temperature: s.temperature,
		}, onDelta)
		if err != nil {
			return nil, "", err
		}
		if resp == nil || len(resp.Choices) == 0 {
			return nil, "", errors.New("model returned no choices")
		}
		choice := resp.Choices[0]
		msg := choice.Message
		s.logger.Debug("model round",
			zap.Int("round", round),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("tool_calls", len(msg.ToolCalls)),
			zap.String("finish_reason", choice.FinishReason),
			zap.Int("output_tokens", resp.Usage.CompletionTokens),
		)
		for _, kind := range choice.Skipped {
			emit(Passthrough{Kind: kind})
		}

		turn = append(turn, msg)
		reqMessages = append(reqMessages, msg)

		if len(msg.ToolCalls) == 0 {
			if reason := choice.FinishReason; reason != "" && !isNormalStop(reason) {
				emit(Passthrough{Kind: "stop_reason", Detail: reason})
			}
			return turn, choice.FinishReason, nil
		}

		for _, call := range msg.ToolCalls {
			args := json.RawMessage(call.Function.Arguments)
			if !emit(ToolInvocation{ID: call.ID, Name: call.Function.Name, Input: args}) {
				return nil, "", ctx.Err()
			}
			result, callErr := s.callTool(ctx, call)

			toolMsg := llm.Message{Role: "tool", ToolCallID: call.ID, Content: result}
			if callErr != nil {
				toolMsg.Content = "ERROR: " + callErr.Error()
				s.logger.Debug("tool call failed",
					zap.String("tool", call.Function.Name),
					zap.Error(callErr),
				)
			} else {
				s.logger.Debug("tool call",
					zap.String("tool", call.Function.Name),
					zap.String("args", runlog.Preview(call.Function.Arguments, 200)),
				)
			}
			emit(ToolResult{
				ID:      call.ID,
				Name:    call.Function.Name,
				Content: toolMsg.Content,
				IsError: callErr != nil,
			})
			turn = append(turn, toolMsg)
			reqMessages = append(reqMessages, toolMsg)
		}
	}
}

func (s *agentSession) callTool(ctx context.Context, call llm.ToolCall) (string, error) {
	name := call.Function.Name
	args := json.RawMessage(call.Function.Arguments)
	if len(strings.TrimSpace(call.Function.Arguments)) == 0 {
		args = json.RawMessage("{}")
	}
	tool, _ := s.registry.Lookup(name)
	if err := s.policy.allowTool(tool, name, args); err != nil {
		return "", err
	}
	return tool.Call(ctx, args)
}

func isNormalStop(reason string) bool {
	switch reason {
	case "stop", "end_turn", "tool_use", "tool_calls", "stop_sequence":
		return true
	default:
		return false
	}
}
