package source

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// CommandRunner is the interface for running acquisition commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string) (output []byte, err error)
}

// ExecCommandRunner uses os/exec.
type ExecCommandRunner struct{}

// Run runs a command and returns its combined output.
func (ExecCommandRunner) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	return buf.Bytes(), err
}

// Executor runs one acquisition tool with a per-invocation timeout.
type Executor struct {
	runner  CommandRunner
	binary  string
	timeout time.Duration
}

// NewExecutor creates an executor for the given binary.
func NewExecutor(binary string, timeout time.Duration) *Executor {
	return &Executor{
		runner:  ExecCommandRunner{},
		binary:  binary,
		timeout: timeout,
	}
}

// NewExecutorWithRunner creates an executor with a custom runner.
func NewExecutorWithRunner(binary string, timeout time.Duration, runner CommandRunner) *Executor {
	return &Executor{
		runner:  runner,
		binary:  binary,
		timeout: timeout,
	}
}

// Execute runs the tool and returns its combined output.
func (e *Executor) Execute(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	output, err := e.runner.Run(ctx, e.binary, args)
	if err != nil {
		if ctx.Err() != nil {
			return output, fmt.Errorf("source: %s: %w", e.binary, ctx.Err())
		}
		return output, fmt.Errorf("source: %s: %w", e.binary, err)
	}

	return output, nil
}
