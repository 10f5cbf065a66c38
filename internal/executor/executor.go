// Package executor runs external programs, capturing their output and exit status.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// waitDelay bounds how long output is collected from a killed process whose
// children still hold its pipes open
const waitDelay = 2 * time.Second

// Command is an executable followed by its leading arguments
type Command []string

func (c Command) String() string {
	return strings.Join(c, " ")
}

// Summary describes a finished (or abandoned) process execution
type Summary struct {
	ExitStatus int
	Stdout     string
	Stderr     string
	TimedOut   bool
}

// ExecutionError indicates a program that could not be run at all, e.g. because
// it does not exist or is not executable.  A program that runs and exits with a
// non-zero status is not an ExecutionError.
type ExecutionError struct {
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("could not execute %s: %s", e.Command, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Run executes the command with the given extra arguments appended, and summarizes
// the result.  If timeout is positive and elapses first, the process is killed and the
// summary is marked as timed out.  Cancellation of ctx is returned as an error.
func (c Command) Run(ctx context.Context, timeout time.Duration, args ...string) (*Summary, error) {
	if len(c) == 0 {
		return nil, &ExecutionError{Err: errors.New("empty command")}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	argv := append(append([]string{}, c[1:]...), args...)
	cmd := exec.CommandContext(ctx, c[0], argv...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	summary := &Summary{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	switch ctx.Err() {
	case context.DeadlineExceeded:
		summary.TimedOut = true
		summary.ExitStatus = -1
		return summary, nil
	case context.Canceled:
		return nil, errors.Wrapf(ctx.Err(), "execution of %s cancelled", c)
	}

	var exit *exec.ExitError
	if errors.As(err, &exit) {
		summary.ExitStatus = exit.ExitCode()
		return summary, nil
	}
	if err != nil {
		return nil, &ExecutionError{Command: c.String(), Err: err}
	}

	return summary, nil
}

// RunExpectZero executes the command, returning its standard output.  A non-zero
// exit status or a timeout is an error carrying the program's standard error.
func (c Command) RunExpectZero(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	s, err := c.Run(ctx, timeout, args...)
	if err != nil {
		return "", err
	}

	if s.TimedOut {
		return s.Stdout, errors.Errorf("%s timed out after %s", c, timeout)
	}
	if s.ExitStatus != 0 {
		return s.Stdout, errors.Errorf("%s exited with status %d: %s", c, s.ExitStatus, strings.TrimSpace(s.Stderr))
	}

	return s.Stdout, nil
}
