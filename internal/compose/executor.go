// Package compose runs docker compose against generated projects.
package compose

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DefaultBinary is the compose entry point. With "docker" the "compose"
// subcommand is prepended; any other binary (docker-compose, podman-compose)
// is invoked directly.
const DefaultBinary = "docker"

// ExecCommand builds the commands run by the executor. Tests replace it.
var ExecCommand = exec.CommandContext

// Executor runs compose commands.
type Executor interface {
	Run(ctx context.Context, args ...string) error
	Up(ctx context.Context, flags ...string) error
	Down(ctx context.Context, flags ...string) error
	IsInstalled() bool
	Version() (string, error)
}

type executor struct {
	binary string
	env    []string
	dir    string
	stdout io.Writer
	stderr io.Writer
}

// NewExecutor creates an executor.
func NewExecutor(options ...Option) Executor {
	e := &executor{
		binary: DefaultBinary,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Option configures an executor.
type Option func(*executor)

// WithBinary sets the compose binary.
func WithBinary(binary string) Option {
	return func(e *executor) {
		if binary != "" {
			e.binary = binary
		}
	}
}

// WithEnv adds environment variables.
func WithEnv(env []string) Option {
	return func(e *executor) {
		e.env = env
	}
}

// WithDir sets the project directory.
func WithDir(dir string) Option {
	return func(e *executor) {
		e.dir = dir
	}
}

// WithOutput sets the output writers.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// Run executes a compose subcommand.
func (e *executor) Run(ctx context.Context, args ...string) error {
	cmd := e.command(ctx, args...)
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	return e.runCommand(cmd)
}

// Up starts the project detached.
func (e *executor) Up(ctx context.Context, flags ...string) error {
	args := []string{"up"}
	if !hasFlag(flags, "-d", "--detach") {
		args = append(args, "-d")
	}
	return e.Run(ctx, append(args, flags...)...)
}

// Down stops and removes the project's containers.
func (e *executor) Down(ctx context.Context, flags ...string) error {
	return e.Run(ctx, append([]string{"down"}, flags...)...)
}

// IsInstalled checks that compose can be invoked.
func (e *executor) IsInstalled() bool {
	_, err := e.Version()
	return err == nil
}

// Version returns the compose version.
func (e *executor) Version() (string, error) {
	cmd := e.command(context.Background(), "version", "--short")
	output, err := cmd.Output()
	if err != nil {
		return "", errors.Wrap(err, "failed to get compose version")
	}
	v := strings.TrimSpace(string(output))
	if v == "" {
		return "", fmt.Errorf("unexpected version output: %q", output)
	}
	return strings.TrimPrefix(v, "v"), nil
}

func (e *executor) command(ctx context.Context, args ...string) *exec.Cmd {
	if filepath.Base(e.binary) == "docker" {
		args = append([]string{"compose"}, args...)
	}
	cmd := ExecCommand(ctx, e.binary, args...)

	if e.dir != "" {
		cmd.Dir = e.dir
	}
	if len(e.env) > 0 {
		base := cmd.Env
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(base, e.env...)
	}
	return cmd
}

func (e *executor) runCommand(cmd *exec.Cmd) error {
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return errors.Wrapf(err, "compose command failed with exit code %d", exitErr.ExitCode())
		}
		return errors.Wrap(err, "failed to execute compose command")
	}
	return nil
}

func hasFlag(flags []string, names ...string) bool {
	for _, f := range flags {
		name, _, _ := strings.Cut(f, "=")
		for _, n := range names {
			if name == n {
				return true
			}
		}
	}
	return false
}
