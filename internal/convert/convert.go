// Package convert runs the external document converter (pandoc by default)
// over a manuscript working directory.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
	"github.com/FocuswithJustin/Bookshelf/internal/logging"
)

// maxOutput bounds the converter output kept in errors.
const maxOutput = 4096

// CommandRunner executes name with args inside dir and returns the combined
// output.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Request describes one conversion.
type Request struct {
	WorkDir    string // directory holding the manuscript and its assets
	Manuscript string // manuscript file name relative to WorkDir
	Output     string // absolute path of the artifact to produce
}

// Converter wraps the configured command.
type Converter struct {
	command string
	args    []string
	timeout time.Duration
	run     CommandRunner
}

// New constructs a converter from configuration.
func New(cfg config.Converter) *Converter {
	return &Converter{
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		timeout: cfg.Timeout(),
		run:     defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (c *Converter) WithCommandRunner(r CommandRunner) {
	if c != nil && r != nil {
		c.run = r
	}
}

// Command returns the executable name.
func (c *Converter) Command() string {
	return c.command
}

// Args returns the full argument list for req.
func (c *Converter) Args(req Request) []string {
	args := []string{req.Manuscript, "-o", req.Output, "--resource-path=" + req.WorkDir}
	return append(args, c.args...)
}

// Convert runs the converter. Failures, including a missing output file and
// the deadline expiring, are reported as *errors.ConverterError carrying
// req.WorkDir; the directory itself is left alone.
func (c *Converter) Convert(ctx context.Context, req Request) error {
	if c == nil {
		return fmt.Errorf("converter not initialized")
	}
	if strings.TrimSpace(req.Manuscript) == "" || strings.TrimSpace(req.Output) == "" {
		return bserrors.NewValidation("convert.request", "manuscript and output are required")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := c.Args(req)
	logging.DebugContext(ctx, "executing converter",
		"command", c.command,
		"args", strings.Join(args, " "),
		"workdir", req.WorkDir,
	)

	start := time.Now()
	output, err := c.run(ctx, req.WorkDir, c.command, args...)
	if err == nil {
		if _, statErr := os.Stat(req.Output); statErr != nil {
			err = fmt.Errorf("no output produced at %s: %w", req.Output, statErr)
		}
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return &bserrors.ConverterError{
			Command: c.command,
			Output:  trimOutput(output),
			WorkDir: req.WorkDir,
			Err:     err,
		}
	}

	logging.InfoContext(ctx, "converter finished",
		"command", c.command,
		"output", filepath.Base(req.Output),
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}

func trimOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxOutput {
		s = s[len(s)-maxOutput:]
	}
	return s
}

func defaultCommandRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
