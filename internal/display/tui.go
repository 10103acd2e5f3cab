package display

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"overkill/internal/workflow"
)

const tuiEventBuffer = 512

type TUIOptions struct {
	Input  io.Reader
	Output io.Writer
	Logger *zap.Logger
	// ShutdownGrace bounds how long Run waits for the task after the
	// surface closes.
	ShutdownGrace time.Duration
	// MarkdownStyle is a glamour style name; empty picks dark or light
	// from the terminal background.
	MarkdownStyle string
	// RunID is shown in the footer.
	RunID string
}

// TUI is the full-screen bubbletea surface. Updates from other goroutines
// are queued on a buffered channel the program drains.
type TUI struct {
	opts   TUIOptions
	logger *zap.Logger
	slot   inputSlot

	events  chan tea.Msg
	closing chan struct{}
	// stopped is closed once the program loop no longer drains events.
	stopped chan struct{}
	once    sync.Once
	started atomic.Bool
}

func NewTUI(opts TUIOptions) *TUI {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.MarkdownStyle) == "" {
		opts.MarkdownStyle = "light"
		if lipgloss.HasDarkBackground() {
			opts.MarkdownStyle = "dark"
		}
	}
	return &TUI{
		opts:    opts,
		logger:  opts.Logger.Named("tui"),
		events:  make(chan tea.Msg, tuiEventBuffer),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (t *TUI) SetPhase(phase workflow.Phase) {
	t.send(phaseMsg{Phase: phase})
}

func (t *TUI) SetAgentStatus(name, status string) {
	t.send(statusMsg{Name: name, Status: status})
}

func (t *TUI) LogActivity(message, icon string) {
	t.send(activityMsg{Icon: icon, Message: message})
}

func (t *TUI) AddMessage(role workflow.Role, content string) {
	t.send(chatMsg{Role: role, Content: content})
}

func (t *TUI) PromptUser(ctx context.Context, question string) (string, error) {
	ch, err := t.slot.arm(question)
	if err != nil {
		t.logger.Error("prompt rejected", zap.Error(err))
		return "", err
	}
	select {
	case t.events <- promptMsg{Question: question}:
	case <-ctx.Done():
	case <-t.closing:
	}
	text, err := t.slot.await(ctx, ch, t.closing)
	if err != nil {
		t.send(promptClearedMsg{})
	}
	return text, err
}

func (t *TUI) Shutdown() {
	t.once.Do(func() { close(t.closing) })
}

func (t *TUI) Run(ctx context.Context, task Task) error {
	if !t.started.CompareAndSwap(false, true) {
		return errRunTwice
	}
	defer t.Shutdown()

	model := newTUIModel(t.events, t.closing, &t.slot, t.opts)
	loop := func(ctx context.Context) error {
		defer close(t.stopped)
		prog := tea.NewProgram(model,
			tea.WithAltScreen(),
			tea.WithInput(t.opts.Input),
			tea.WithOutput(t.opts.Output),
			tea.WithContext(ctx),
		)
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-t.closing:
				prog.Quit()
			case <-stop:
			}
		}()
		_, err := prog.Run()
		if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return runGroup(ctx, loop, task, t.opts.ShutdownGrace, t.logger, func(err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			t.LogActivity("Error: "+err.Error(), IconError)
		}
		t.send(finishedMsg{Err: err})
	})
}

// send queues msg. Plain activity lines are dropped when the queue is
// full; every other update waits for room until the surface stops.
func (t *TUI) send(msg tea.Msg) {
	select {
	case <-t.closing:
		return
	case <-t.stopped:
		return
	default:
	}
	select {
	case t.events <- msg:
		return
	default:
	}
	if droppable(msg) {
		t.logger.Debug("display update dropped", zap.Error(ErrNotReady))
		return
	}
	select {
	case t.events <- msg:
	case <-t.closing:
	case <-t.stopped:
	}
}

func droppable(msg tea.Msg) bool {
	activity, ok := msg.(activityMsg)
	return ok && activity.Icon != IconError
}
