package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"overkill/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedModel replays canned assistant messages, one per round.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []llm.Message
	requests []llm.ChatRequest
	readyErr error
	// block, when set, holds every Stream call until it is closed or the
	// request context ends.
	block chan struct{}
}

func (m *scriptedModel) Ready() error { return m.readyErr }

func (m *scriptedModel) Stream(ctx context.Context, req llm.ChatRequest, onDelta llm.DeltaFunc) (*llm.ChatResponse, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if len(m.replies) == 0 {
		m.mu.Unlock()
		return nil, errors.New("script exhausted")
	}
	msg := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()

	if msg.Content != "" && onDelta != nil {
		onDelta(msg.Content)
	}
	reason := "end_turn"
	if len(msg.ToolCalls) > 0 {
		reason = "tool_use"
	}
	return &llm.ChatResponse{Choices: []llm.Choice{{Message: msg, FinishReason: reason}}}, nil
}

func (m *scriptedModel) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func toolCall(id, name string, args any) llm.ToolCall {
	raw, _ := json.Marshal(args)
	return llm.ToolCall{ID: id, Type: "function", Function: llm.ToolCallFunction{Name: name, Arguments: string(raw)}}
}

func runTurn(t *testing.T, sess Session, message string) (Turn, []Event, error) {
	t.Helper()
	events, err := sess.Send(context.Background(), message)
	require.NoError(t, err)
	var seen []Event
	turn, err := Collect(context.Background(), events, func(ev Event) { seen = append(seen, ev) })
	return turn, seen, err
}

func TestSessionTextOnlyTurn(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{{Role: "assistant", Content: "Hello there"}}}
	gw := &AgentGateway{Model: model}
	sess, err := gw.Open(context.Background(), SessionConfig{Name: "engineer", SystemPrompt: "be brief", Profile: ProfileConverse})
	require.NoError(t, err)
	defer sess.Close()

	turn, seen, err := runTurn(t, sess, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", turn.Text)
	assert.Equal(t, 1, turn.Events)
	assert.Equal(t, []Event{TextFragment{Text: "Hello there"}}, seen)

	require.Len(t, model.requests, 1)
	assert.Empty(t, model.requests[0].Tools, "converse profile exposes no tools")
	assert.Equal(t, "system", model.requests[0].Messages[0].Role)
}

func TestSessionRunsToolsAndCarriesHistory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	model := &scriptedModel{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{toolCall("t1", "Read", map[string]any{"path": "a.txt"})}},
		{Role: "assistant", Content: "The file says hello."},
		{Role: "assistant", Content: "Second answer."},
	}}
	gw := &AgentGateway{Model: model}
	sess, err := gw.Open(context.Background(), SessionConfig{Name: "explore", Profile: ProfileExplore, WorkDir: dir})
	require.NoError(t, err)
	defer sess.Close()

	turn, seen, err := runTurn(t, sess, "read a.txt")
	require.NoError(t, err)
	assert.Equal(t, "The file says hello.", turn.Text)
	assert.Equal(t, 1, turn.Tools)
	require.Len(t, seen, 3)
	inv, ok := seen[0].(ToolInvocation)
	require.True(t, ok)
	assert.Equal(t, "Read", inv.Name)
	res, ok := seen[1].(ToolResult)
	require.True(t, ok)
	assert.Equal(t, "hello", res.Content)
	assert.False(t, res.IsError)

	names := make([]string, 0)
	for _, def := range model.requests[0].Tools {
		names = append(names, def.Function.Name)
	}
	assert.ElementsMatch(t, []string{"Bash", "Glob", "Grep", "Read"}, names)

	_, _, err = runTurn(t, sess, "again")
	require.NoError(t, err)
	last := model.requests[len(model.requests)-1].Messages
	// user, assistant(tool call), tool, assistant, user
	require.Len(t, last, 5)
	assert.Equal(t, "read a.txt", last[0].Content)
	assert.Equal(t, "tool", last[2].Role)
	assert.Equal(t, "again", last[4].Content)
}

func TestSessionRefusesToolsOutsideProfile(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{toolCall("t1", "Bash", map[string]any{"command": "rm -rf /"})}},
		{Role: "assistant", Content: "ok"},
	}}
	gw := &AgentGateway{Model: model}
	sess, err := gw.Open(context.Background(), SessionConfig{Profile: ProfileConverse, WorkDir: t.TempDir()})
	require.NoError(t, err)
	defer sess.Close()

	turn, seen, err := runTurn(t, sess, "go")
	require.NoError(t, err)
	assert.Equal(t, "ok", turn.Text)
	res, ok := seen[1].(ToolResult)
	require.True(t, ok)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "not available")
}

func TestWriteProfileHonoursWritablePaths(t *testing.T) {
	dir := t.TempDir()
	target, err := filepath.Abs(filepath.Join(dir, "SPEC.md"))
	require.NoError(t, err)

	model := &scriptedModel{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{
			toolCall("t1", "Write", map[string]any{"path": "other.md", "content": "nope"}),
			toolCall("t2", "Write", map[string]any{"path": target, "content": "# Spec"}),
		}},
		{Role: "assistant", Content: "written"},
	}}
	gw := &AgentGateway{Model: model}
	sess, err := gw.Open(context.Background(), SessionConfig{
		Profile:    ProfileWriteFile,
		Permission: PermissionPolicy{Mode: PermissionAcceptEdits, WritablePaths: []string{target}},
		WorkDir:    dir,
	})
	require.NoError(t, err)
	defer sess.Close()

	_, seen, err := runTurn(t, sess, "write it")
	require.NoError(t, err)

	var results []ToolResult
	for _, ev := range seen {
		if r, ok := ev.(ToolResult); ok {
			results = append(results, r)
		}
	}
	require.Len(t, results, 2)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Content, "writes are restricted")
	assert.False(t, results[1].IsError)

	_, err = os.Stat(filepath.Join(dir, "other.md"))
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "# Spec", string(data))
}

func TestDefaultPermissionRefusesWrites(t *testing.T) {
	dir := t.TempDir()
	model := &scriptedModel{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{toolCall("t1", "Write", map[string]any{"path": "SPEC.md", "content": "x"})}},
		{Role: "assistant", Content: "done"},
	}}
	sess, err := (&AgentGateway{Model: model}).Open(context.Background(), SessionConfig{Profile: ProfileWriteFile, WorkDir: dir})
	require.NoError(t, err)
	defer sess.Close()

	_, seen, err := runTurn(t, sess, "write")
	require.NoError(t, err)
	res := seen[1].(ToolResult)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "read-only")
	_, err = os.Stat(filepath.Join(dir, "SPEC.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestToolRoundLimit(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{toolCall("t", "Glob", map[string]any{"pattern": "*.go"})}},
	}}
	gw := &AgentGateway{Model: model, MaxToolRounds: 2}
	sess, err := gw.Open(context.Background(), SessionConfig{Profile: ProfileExplore, WorkDir: t.TempDir()})
	require.NoError(t, err)
	defer sess.Close()

	_, _, err = runTurn(t, sess, "loop forever")
	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Contains(t, err.Error(), "tool round limit (2)")
	assert.Equal(t, 2, model.requestCount())
}

func TestOpenFailsWhenModelNotReady(t *testing.T) {
	gw := &AgentGateway{Model: &scriptedModel{readyErr: errors.New("api key is required")}}
	_, err := gw.Open(context.Background(), SessionConfig{Name: "explore", Profile: ProfileExplore})
	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, "explore", sessErr.Session)
	assert.Contains(t, err.Error(), "check the API key")
}

func TestOpenRejectsAcceptEditsWithoutPaths(t *testing.T) {
	gw := &AgentGateway{Model: &scriptedModel{}}
	_, err := gw.Open(context.Background(), SessionConfig{Profile: ProfileWriteFile, Permission: PermissionPolicy{Mode: PermissionAcceptEdits}})
	require.Error(t, err)
}

func TestSendRejectsOverlappingTurns(t *testing.T) {
	model := &scriptedModel{
		replies: []llm.Message{{Role: "assistant", Content: "first"}},
		block:   make(chan struct{}),
	}
	sess, err := (&AgentGateway{Model: model}).Open(context.Background(), SessionConfig{Profile: ProfileConverse})
	require.NoError(t, err)
	defer sess.Close()

	events, err := sess.Send(context.Background(), "one")
	require.NoError(t, err)
	_, err = sess.Send(context.Background(), "two")
	require.Error(t, err)
	assert.ErrorIs(t, err, errTurnInFlight)

	close(model.block)
	turn, err := Collect(context.Background(), events, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", turn.Text)
}

func TestCancelledTurnEndsStream(t *testing.T) {
	model := &scriptedModel{
		replies: []llm.Message{{Role: "assistant", Content: "never"}},
		block:   make(chan struct{}),
	}
	sess, err := (&AgentGateway{Model: model}).Open(context.Background(), SessionConfig{Profile: ProfileConverse})
	require.NoError(t, err)
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := sess.Send(ctx, "hello")
	require.NoError(t, err)
	cancel()

	_, err = Collect(ctx, events, nil)
	assert.ErrorIs(t, err, context.Canceled)
	// Drain so the session goroutine has exited before goleak runs.
	for range events {
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	sess, err := (&AgentGateway{Model: &scriptedModel{}}).Open(context.Background(), SessionConfig{Profile: ProfileConverse})
	require.NoError(t, err)
	require.NoError(t, sess.Close())
	_, err = sess.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, errSessionClosed)
}

func TestCollectReportsTruncatedStream(t *testing.T) {
	ch := make(chan Event, 1)
	ch <- TextFragment{Text: "partial"}
	close(ch)
	turn, err := Collect(context.Background(), ch, nil)
	assert.ErrorIs(t, err, errTurnTruncated)
	assert.Equal(t, "partial", turn.Text)
}
