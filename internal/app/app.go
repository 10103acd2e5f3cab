// Package app wires configuration, the agent gateway, the display surface
// and the pipeline into one run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"overkill/internal/config"
	"overkill/internal/display"
	"overkill/internal/gateway"
	"overkill/internal/llm"
	"overkill/internal/mcpclient"
	"overkill/internal/pipeline"
	"overkill/internal/repo"
)

type Options struct {
	Repo    string
	Feature string
	Output  string
	Demo    bool
	RunID   string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes one pipeline run. Errors before the surface starts are
// returned; pipeline failures are shown on the surface and do not fail the
// run. A cancelled ctx is returned as ctx's error.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	feature := strings.TrimSpace(opts.Feature)
	if feature == "" {
		return errors.New("a feature description is required")
	}
	logger.Info("run starting",
		zap.String("repo", opts.Repo),
		zap.String("output", opts.Output),
		zap.Bool("demo", opts.Demo),
		zap.String("provider", cfg.Provider),
	)

	acq := &repo.Acquirer{
		Logger: logger,
		Progress: func(message, icon string) {
			fmt.Fprintf(opts.Stderr, "%s %s\n", icon, message)
		},
	}
	checkout, err := acq.Acquire(ctx, opts.Repo)
	if err != nil {
		return err
	}
	defer checkout.Release()

	mcp, err := mcpclient.Connect(ctx, cfg.MCPServers, logger.Named("mcp"))
	if err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	defer mcp.Close()

	gw := &gateway.AgentGateway{
		Model:         llm.NewClient(cfg.LLM()),
		External:      mcp.Tools(),
		Logger:        logger.Named("gateway"),
		MaxToolRounds: cfg.MaxToolRounds,
		Temperature:   cfg.Temperature,
	}

	surface := newSurface(cfg, logger, opts)
	var input pipeline.InputSource = pipeline.Interactive{Prompter: surface}
	if opts.Demo {
		responses := cfg.Demo.Responses
		if len(responses) == 0 {
			responses = pipeline.DefaultDemoResponses
		}
		input = pipeline.NewScripted(responses, cfg.DemoDelay())
	}
	orch := &pipeline.Orchestrator{
		Gateway:  gw,
		Reporter: surface,
		Input:    input,
		Logger:   logger.Named("pipeline"),
	}

	task := func(ctx context.Context) error {
		res, err := orch.Run(ctx, pipeline.Request{
			Checkout:   checkout,
			Feature:    feature,
			OutputPath: opts.Output,
		})
		if err != nil {
			// Already on the activity log; the surface stays up so the
			// user can read it.
			logger.Warn("run ended with an error", zap.Error(err))
			return nil
		}
		logger.Info("run finished", zap.String("spec", res.SpecPath))
		return nil
	}

	err = surface.Run(ctx, task)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func newSurface(cfg config.Config, logger *zap.Logger, opts Options) display.Surface {
	if chooseUI(cfg.UI, opts.Stdin, opts.Stdout) == config.UITUI {
		return display.NewTUI(display.TUIOptions{
			Input:         opts.Stdin,
			Output:        opts.Stdout,
			Logger:        logger,
			ShutdownGrace: cfg.ShutdownGraceDuration(),
			RunID:         opts.RunID,
		})
	}
	return display.NewPlain(display.PlainOptions{
		Input:         opts.Stdin,
		Output:        opts.Stdout,
		Logger:        logger,
		ShutdownGrace: cfg.ShutdownGraceDuration(),
	})
}

// chooseUI resolves "auto" to the full-screen surface only when both ends
// are terminals.
func chooseUI(mode string, in io.Reader, out io.Writer) string {
	switch mode {
	case config.UITUI, config.UIPlain:
		return mode
	}
	if isTerminal(in) && isTerminal(out) {
		return config.UITUI
	}
	return config.UIPlain
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
