package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"overkill/internal/config"
	"overkill/internal/repo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func plainConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.UI = config.UIPlain
	cfg.APIKey = ""
	cfg.ShutdownGrace = "1s"
	return cfg
}

func TestRunReportsPipelineFailureOnSurface(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	var out, errOut bytes.Buffer
	err := Run(context.Background(), plainConfig(), nil, Options{
		Repo:    dir,
		Feature: "add health checks",
		Output:  filepath.Join(t.TempDir(), "SPEC.md"),
		Stdin:   strings.NewReader(""),
		Stdout:  &out,
		Stderr:  &errOut,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "EXPLORE")
	assert.Contains(t, out.String(), "api key is required")
	assert.FileExists(t, filepath.Join(dir, "main.go"))
}

func TestRunFailsBeforeSurfaceOnMissingRepo(t *testing.T) {
	var out, errOut bytes.Buffer
	err := Run(context.Background(), plainConfig(), nil, Options{
		Repo:    filepath.Join(t.TempDir(), "missing"),
		Feature: "add health checks",
		Stdin:   strings.NewReader(""),
		Stdout:  &out,
		Stderr:  &errOut,
	})
	var acqErr *repo.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.Empty(t, out.String())
}

func TestRunRequiresFeature(t *testing.T) {
	err := Run(context.Background(), plainConfig(), nil, Options{
		Repo:    t.TempDir(),
		Feature: "   ",
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})
	require.Error(t, err)
}

func TestRunReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, plainConfig(), nil, Options{
		Repo:    t.TempDir(),
		Feature: "add health checks",
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestChooseUI(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, config.UIPlain, chooseUI(config.UIAuto, strings.NewReader(""), &buf))
	assert.Equal(t, config.UITUI, chooseUI(config.UITUI, strings.NewReader(""), &buf))
	assert.Equal(t, config.UIPlain, chooseUI(config.UIPlain, os.Stdin, os.Stdout))
}
