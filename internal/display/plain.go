package display

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"overkill/internal/appinfo"
	"overkill/internal/workflow"
)

type PlainOptions struct {
	Input         io.Reader
	Output        io.Writer
	Logger        *zap.Logger
	ShutdownGrace time.Duration
}

// Plain is a line-oriented surface for pipes and dumb terminals. Output is
// written as it arrives; answers are read from Input one line at a time.
type Plain struct {
	in     io.Reader
	out    io.Writer
	grace  time.Duration
	logger *zap.Logger
	slot   inputSlot

	mu     sync.Mutex
	phase  workflow.Phase
	status string

	bold  lipgloss.Style
	faint lipgloss.Style
	red   lipgloss.Style

	readOnce sync.Once
	eof      chan struct{}
	closing  chan struct{}
	once     sync.Once
	started  atomic.Bool
}

func NewPlain(opts PlainOptions) *Plain {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := lipgloss.NewRenderer(opts.Output)
	return &Plain{
		in:      opts.Input,
		out:     opts.Output,
		grace:   opts.ShutdownGrace,
		logger:  opts.Logger.Named("plain"),
		phase:   workflow.PhaseNone,
		bold:    r.NewStyle().Bold(true),
		faint:   r.NewStyle().Faint(true),
		red:     r.NewStyle().Foreground(lipgloss.Color("1")),
		eof:     make(chan struct{}),
		closing: make(chan struct{}),
	}
}

func (p *Plain) SetPhase(phase workflow.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if phase.Index() <= p.phase.Index() {
		return
	}
	p.phase = phase
	p.printf("\n%s\n", p.bold.Render("== "+phase.Label()+" =="))
}

func (p *Plain) SetAgentStatus(name, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := "🤖 " + name + ": " + status
	if line == p.status {
		return
	}
	p.status = line
	p.printf("%s\n", p.faint.Render(line))
}

func (p *Plain) LogActivity(message, icon string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := strings.TrimSpace(icon + " " + message)
	if icon == IconError {
		line = p.red.Render(line)
	}
	p.printf("%s\n", line)
}

func (p *Plain) AddMessage(role workflow.Role, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n%s%s\n", p.bold.Render(role.Prefix()), strings.TrimRight(content, "\n"))
}

func (p *Plain) PromptUser(ctx context.Context, question string) (string, error) {
	ch, err := p.slot.arm(question)
	if err != nil {
		p.logger.Error("prompt rejected", zap.Error(err))
		return "", err
	}
	select {
	case <-p.eof:
		p.slot.disarm(ch)
		return "", io.EOF
	default:
	}

	q := strings.TrimSpace(question)
	if q == "" {
		q = "Your reply"
	}
	p.mu.Lock()
	p.printf("%s ", p.bold.Render(q+" >"))
	p.mu.Unlock()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.eof:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	text, err := p.slot.await(waitCtx, ch, p.closing)
	if err != nil && ctx.Err() == nil && isClosed(p.eof) {
		return "", io.EOF
	}
	return text, err
}

func (p *Plain) Shutdown() {
	p.once.Do(func() { close(p.closing) })
}

func (p *Plain) Run(ctx context.Context, task Task) error {
	if !p.started.CompareAndSwap(false, true) {
		return errRunTwice
	}
	defer p.Shutdown()

	p.mu.Lock()
	p.printf("%s\n", p.bold.Render(appinfo.Display()+"  "+appinfo.Tagline))
	p.mu.Unlock()

	p.readOnce.Do(func() { go p.readLines() })
	loop := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closing:
			return nil
		}
	}
	return runGroup(ctx, loop, task, p.grace, p.logger, func(err error) {
		if err != nil && ctx.Err() == nil {
			p.LogActivity("Error: "+err.Error(), IconError)
		}
		p.Shutdown()
	})
}

// readLines feeds submitted lines to the outstanding prompt. Lines typed
// while nothing is asked are discarded.
func (p *Plain) readLines() {
	defer close(p.eof)
	scanner := bufio.NewScanner(p.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !p.slot.resolve(line) {
			p.logger.Debug("input discarded", zap.String("line", line))
		}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("input stream failed", zap.Error(err))
	}
}

// printf must be called with mu held.
func (p *Plain) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(p.out, format, args...); err != nil {
		p.logger.Debug("write failed", zap.Error(err))
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
