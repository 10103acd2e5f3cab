package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"overkill/internal/app"
	"overkill/internal/appinfo"
	"overkill/internal/config"
	"overkill/internal/runlog"
)

var (
	repoFlag    string
	outputFlag  string
	demoFlag    bool
	configPath  string
	uiFlag      string
	verboseFlag bool

	cfg    config.Config
	logger *zap.Logger
	runID  string
)

var rootCmd = &cobra.Command{
	Use:     "overkill --repo <path-or-url> <feature description...>",
	Short:   appinfo.Tagline,
	Version: appinfo.Version,
	Long: `Overkill explores a repository, runs an interactive engineering
conversation about a feature, and writes the result to a SPEC.md file.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		required := cmd.Flags().Changed("config")
		if path == "" {
			path = config.DefaultPath
		}
		loaded, err := config.Load(path, required)
		if err != nil {
			return err
		}
		if uiFlag != "" {
			switch ui := strings.ToLower(uiFlag); ui {
			case config.UIAuto, config.UITUI, config.UIPlain:
				loaded.UI = ui
			default:
				return fmt.Errorf("--ui must be one of %s, %s, %s; got %q", config.UIAuto, config.UITUI, config.UIPlain, uiFlag)
			}
		}
		cfg = loaded

		runID = uuid.NewString()
		logger, err = runlog.New(runlog.Options{
			Path:    cfg.LogFile,
			Verbose: verboseFlag,
			RunID:   runID,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = runlog.Sync(logger)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(cmd.Context(), cfg, runlog.OrNop(logger), app.Options{
			Repo:    repoFlag,
			Feature: strings.Join(args, " "),
			Output:  outputFlag,
			Demo:    demoFlag,
			RunID:   runID[:8],
			Stdin:   os.Stdin,
			Stdout:  os.Stdout,
			Stderr:  os.Stderr,
		})
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&repoFlag, "repo", "r", "", "local path or git URL of the repository to analyze")
	flags.StringVarP(&outputFlag, "output", "o", "SPEC.md", "where to write the specification")
	flags.BoolVar(&demoFlag, "demo", false, "answer engineering questions from a scripted list")
	flags.StringVarP(&configPath, "config", "c", "", "path to config file (default "+config.DefaultPath+")")
	flags.StringVar(&uiFlag, "ui", "", "display surface: auto, tui or plain")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	_ = rootCmd.MarkFlagRequired("repo")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
