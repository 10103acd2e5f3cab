package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the diagnostic log. The terminal belongs to the
// display surface, so records only ever go to a file.
type Options struct {
	// Path is the log file. Empty disables logging.
	Path    string
	Verbose bool
	// RunID is attached to every record.
	RunID string
}

// New builds a zap logger writing JSON lines to opts.Path.
func New(opts Options) (*zap.Logger, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return zap.NewNop(), nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("runlog: create log dir: %w", err)
		}
	}

	cfg := zap.NewProductionConfig()
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("runlog: build logger: %w", err)
	}
	if id := strings.TrimSpace(opts.RunID); id != "" {
		logger = logger.With(zap.String("run_id", id))
	}
	return logger, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Sync flushes l, ignoring the errors file descriptors such as
// /dev/stderr report on sync.
func Sync(l *zap.Logger) error {
	if l == nil {
		return nil
	}
	err := l.Sync()
	if err == nil {
		return nil
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return nil
	}
	return err
}

// Preview flattens raw onto one line and caps it at max bytes.
func Preview(raw string, max int) string {
	if max <= 0 {
		return ""
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	if max < len(truncatedSuffix) {
		return text[:max]
	}
	return text[:max-len(truncatedSuffix)] + truncatedSuffix
}

const truncatedSuffix = " ... (truncated)"
