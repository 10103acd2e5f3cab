// Package repo stages the repository a run analyses: local paths are used
// in place, remote locations are cloned into a temporary directory.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const tempPrefix = "overkill_"

var remotePrefixes = []string{"http://", "https://", "git@"}

// IsRemote reports whether location names a repository to clone.
func IsRemote(location string) bool {
	location = strings.TrimSpace(location)
	for _, prefix := range remotePrefixes {
		if strings.HasPrefix(location, prefix) {
			return true
		}
	}
	return false
}

// AcquisitionError reports a repository that could not be cloned or found.
type AcquisitionError struct {
	Location string
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("repo: acquire %s: %v", e.Location, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Progress receives user-facing progress lines.
type Progress func(message, icon string)

type Acquirer struct {
	Logger   *zap.Logger
	Progress Progress
	// Git is the git executable; empty means "git" from PATH.
	Git string
	// TempDir is the parent of clone directories; empty means os.TempDir.
	TempDir string
}

// Checkout is a staged repository. Release removes a temporary clone and
// is safe to call more than once.
type Checkout struct {
	Location  string
	dir       string
	temporary bool

	logger  *zap.Logger
	once    sync.Once
	release error
}

func (c *Checkout) Dir() string { return c.dir }

// Temporary reports whether Release deletes Dir.
func (c *Checkout) Temporary() bool { return c.temporary }

func (c *Checkout) Release() error {
	if c == nil || !c.temporary {
		return nil
	}
	c.once.Do(func() {
		if err := os.RemoveAll(c.dir); err != nil {
			c.release = fmt.Errorf("repo: remove %s: %w", c.dir, err)
			c.logger.Warn("cleanup failed", zap.String("dir", c.dir), zap.Error(err))
			return
		}
		c.logger.Debug("clone removed", zap.String("dir", c.dir))
	})
	return c.release
}

func (a *Acquirer) Acquire(ctx context.Context, location string) (*Checkout, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, &AcquisitionError{Location: location, Err: errors.New("no repository given")}
	}
	if IsRemote(location) {
		return a.clone(ctx, location)
	}
	return a.local(location)
}

func (a *Acquirer) local(location string) (*Checkout, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, &AcquisitionError{Location: location, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &AcquisitionError{Location: location, Err: fmt.Errorf("path does not exist: %s", abs)}
		}
		return nil, &AcquisitionError{Location: location, Err: err}
	}
	if !info.IsDir() {
		return nil, &AcquisitionError{Location: location, Err: fmt.Errorf("not a directory: %s", abs)}
	}
	return &Checkout{Location: location, dir: abs, logger: a.logger()}, nil
}

func (a *Acquirer) clone(ctx context.Context, location string) (*Checkout, error) {
	logger := a.logger()
	a.progress("Cloning "+location+"...", "📥")

	dir, err := os.MkdirTemp(a.TempDir, tempPrefix)
	if err != nil {
		return nil, &AcquisitionError{Location: location, Err: err}
	}
	git := a.Git
	if strings.TrimSpace(git) == "" {
		git = "git"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, git, "clone", location, dir)
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(dir)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("git clone: %s", msg)
		} else {
			err = fmt.Errorf("git clone: %w", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &AcquisitionError{Location: location, Err: err}
	}

	logger.Info("repository cloned", zap.String("location", location), zap.String("dir", dir))
	a.progress("Cloned to "+dir, "✅")
	return &Checkout{Location: location, dir: dir, temporary: true, logger: logger}, nil
}

func (a *Acquirer) progress(message, icon string) {
	if a.Progress != nil {
		a.Progress(message, icon)
	}
}

func (a *Acquirer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger.Named("repo")
}
