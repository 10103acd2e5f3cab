package display

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overkill/internal/workflow"
)

func newTestModel(t *testing.T) (tuiModel, *inputSlot) {
	t.Helper()
	slot := &inputSlot{}
	m := newTUIModel(make(chan tea.Msg), make(chan struct{}), slot, TUIOptions{MarkdownStyle: "notty", RunID: "run-1"})
	return step(m, tea.WindowSizeMsg{Width: 120, Height: 40}), slot
}

func step(m tuiModel, msg tea.Msg) tuiModel {
	next, _ := m.Update(msg)
	return next.(tuiModel)
}

func TestTUIModelPhaseNeverMovesBackward(t *testing.T) {
	m, _ := newTestModel(t)

	m = step(m, phaseMsg{Phase: workflow.PhaseEngineer})
	require.Equal(t, workflow.PhaseEngineer, m.phase)

	for _, p := range []workflow.Phase{workflow.PhaseExplore, workflow.PhaseNone, workflow.PhaseEngineer} {
		m = step(m, phaseMsg{Phase: p})
		assert.Equal(t, workflow.PhaseEngineer, m.phase, "phase %s must not rewind the indicator", p)
	}

	m = step(m, phaseMsg{Phase: workflow.PhaseCrystallize})
	assert.Equal(t, workflow.PhaseCrystallize, m.phase)

	view := m.View()
	assert.Contains(t, view, "✓ "+workflow.PhaseExplore.Label())
	assert.Contains(t, view, "✓ "+workflow.PhaseEngineer.Label())
}

func TestTUIModelEnterResolvesArmedPrompt(t *testing.T) {
	m, slot := newTestModel(t)
	ch, err := slot.arm("What next?")
	require.NoError(t, err)

	m = step(m, promptMsg{Question: "What next?"})
	require.True(t, m.prompting)
	assert.Equal(t, "What next?", m.input.Placeholder)

	m = step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("add retries")})
	m = step(m, tea.KeyMsg{Type: tea.KeyEnter})

	select {
	case text := <-ch:
		assert.Equal(t, "add retries", text)
	default:
		t.Fatal("enter did not resolve the prompt")
	}
	assert.False(t, m.prompting)
	assert.Empty(t, m.input.Value())
	assert.Equal(t, defaultPlaceholder, m.input.Placeholder)
}

func TestTUIModelIgnoresInputWithoutPrompt(t *testing.T) {
	m, slot := newTestModel(t)
	m = step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("early")})
	m = step(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.input.Value())

	_, ok := slot.armed()
	assert.False(t, ok)
}

func TestTUIModelStalePromptIsIgnored(t *testing.T) {
	m, _ := newTestModel(t)
	m = step(m, promptMsg{Question: "gone"})
	assert.False(t, m.prompting, "a prompt that is no longer armed must not focus the input")
}

func TestTUIModelRendersLogs(t *testing.T) {
	m, _ := newTestModel(t)
	m = step(m, statusMsg{Name: "VibeEngineer", Status: "Thinking..."})
	m = step(m, activityMsg{Icon: IconInfo, Message: "Repository analysis complete"})
	m = step(m, chatMsg{Role: workflow.RoleAgent, Content: "Which storage backend?"})
	m = step(m, chatMsg{Role: workflow.RoleUser, Content: "postgres"})

	view := m.View()
	assert.Contains(t, view, "🤖 VibeEngineer")
	assert.Contains(t, view, "Thinking...")
	assert.Contains(t, view, "Repository analysis complete")
	assert.Contains(t, view, "Agent:")
	assert.Contains(t, view, "Which storage backend?")
	assert.Contains(t, view, "You: postgres")
	assert.Contains(t, view, "run-1")
}

func TestTUIModelFinishedShowsExitHint(t *testing.T) {
	m, _ := newTestModel(t)
	m = step(m, finishedMsg{})
	assert.Contains(t, m.View(), "Complete! Press Ctrl+C to exit.")
}

func TestTUIModelQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyCtrlQ} {
		m, _ := newTestModel(t)
		_, cmd := m.Update(tea.KeyMsg{Type: key})
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestTUIPromptUserRejectsSecondPrompt(t *testing.T) {
	tui := NewTUI(TUIOptions{MarkdownStyle: "notty"})
	defer tui.Shutdown()

	type answer struct {
		text string
		err  error
	}
	first := make(chan answer, 1)
	go func() {
		text, err := tui.PromptUser(context.Background(), "first?")
		first <- answer{text, err}
	}()
	require.Eventually(t, func() bool {
		_, ok := tui.slot.armed()
		return ok
	}, time.Second, 5*time.Millisecond)

	_, err := tui.PromptUser(context.Background(), "second?")
	require.ErrorIs(t, err, ErrPromptPending)

	require.True(t, tui.slot.resolve("yes"))
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, "yes", got.text)
}

func TestTUIPromptUserHonoursContext(t *testing.T) {
	tui := NewTUI(TUIOptions{MarkdownStyle: "notty"})
	defer tui.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tui.PromptUser(ctx, "anyone?")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := tui.slot.armed()
	assert.False(t, ok)
}

func TestTUIShutdownIsIdempotent(t *testing.T) {
	tui := NewTUI(TUIOptions{MarkdownStyle: "notty"})
	tui.Shutdown()
	tui.Shutdown()

	_, err := tui.PromptUser(context.Background(), "late?")
	assert.ErrorIs(t, err, ErrClosed)

	// Updates after shutdown are dropped without blocking.
	tui.SetPhase(workflow.PhaseExplore)
	tui.LogActivity("ignored", IconInfo)
}

func TestTUIDropsActivityWhenQueueIsFull(t *testing.T) {
	tui := NewTUI(TUIOptions{MarkdownStyle: "notty"})
	defer tui.Shutdown()

	for i := 0; i < tuiEventBuffer+50; i++ {
		tui.LogActivity("line", IconInfo)
	}
	assert.Len(t, tui.events, tuiEventBuffer)
}

func fillQueue(tui *TUI) {
	for len(tui.events) < cap(tui.events) {
		tui.LogActivity("line", IconInfo)
	}
}

func TestTUIConversationWaitsForRoom(t *testing.T) {
	tui := NewTUI(TUIOptions{MarkdownStyle: "notty"})
	defer tui.Shutdown()
	fillQueue(tui)

	sent := make(chan struct{})
	go func() {
		tui.AddMessage(workflow.RoleAgent, "Which database?")
		close(sent)
	}()
	require.Never(t, func() bool {
		select {
		case <-sent:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	<-tui.events
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("conversation line was not queued")
	}

	var last tea.Msg
	for len(tui.events) > 0 {
		last = <-tui.events
	}
	assert.Equal(t, chatMsg{Role: workflow.RoleAgent, Content: "Which database?"}, last)
}

func TestTUIErrorActivityIsNotDropped(t *testing.T) {
	tui := NewTUI(TUIOptions{MarkdownStyle: "notty"})
	defer tui.Shutdown()
	fillQueue(tui)

	sent := make(chan struct{})
	go func() {
		tui.LogActivity("Error: boom", IconError)
		close(sent)
	}()
	<-tui.events
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("error line was not queued")
	}
}

func TestTUIShutdownReleasesBlockedUpdate(t *testing.T) {
	tui := NewTUI(TUIOptions{MarkdownStyle: "notty"})
	fillQueue(tui)

	sent := make(chan struct{})
	go func() {
		tui.SetPhase(workflow.PhaseEngineer)
		close(sent)
	}()
	tui.Shutdown()
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("update stayed blocked after shutdown")
	}
}

func TestTUIRunTwice(t *testing.T) {
	tui := NewTUI(TUIOptions{MarkdownStyle: "notty"})
	tui.started.Store(true)
	assert.ErrorIs(t, tui.Run(context.Background(), nil), errRunTwice)
}
