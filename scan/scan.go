// Package scan checks files for malicious content using an external virus scanner.
//
// The scanner is any program that takes a file path as its last argument and
// reports its verdict through its exit status: one configured status means clean,
// another means infected, and anything else is indeterminate.
package scan

import (
	"context"
	"time"

	"github.com/birkland/sipvalidate/internal/executor"
)

// Verdict is the classification of a single scan
type Verdict int

// Scan verdicts
const (
	Indeterminate Verdict = iota
	Clean
	Infected
)

func (v Verdict) String() string {
	switch v {
	case Clean:
		return "clean"
	case Infected:
		return "infected"
	default:
		return "indeterminate"
	}
}

// Result is the outcome of scanning one file
type Result struct {
	Verdict    Verdict
	ExitStatus int
	TimedOut   bool
	Stdout     string
	Stderr     string
}

// Scanner scans individual files.  Implementations must be safe for
// concurrent use.
//
// An error means the scan could not be performed at all (e.g. the scanner program
// is missing), as opposed to an Indeterminate verdict from a scan that ran.
type Scanner interface {
	Scan(ctx context.Context, file string) (*Result, error)
}

// Func is a function that can be used to satisfy the Scanner interface
type Func func(ctx context.Context, file string) (*Result, error)

// Scan a file
func (f Func) Scan(ctx context.Context, file string) (*Result, error) {
	return f(ctx, file)
}

// Exec scans files by running an external scanner once per file
type Exec struct {
	Command        executor.Command // the file path is appended as a final argument
	CleanStatus    int
	InfectedStatus int
	Timeout        time.Duration // zero means no timeout
}

// Scan runs the scanner against a file.  A scan that times out is Indeterminate.
func (e *Exec) Scan(ctx context.Context, file string) (*Result, error) {
	s, err := e.Command.Run(ctx, e.Timeout, file)
	if err != nil {
		return nil, err
	}

	r := &Result{
		ExitStatus: s.ExitStatus,
		TimedOut:   s.TimedOut,
		Stdout:     s.Stdout,
		Stderr:     s.Stderr,
	}

	switch {
	case s.TimedOut:
		r.Verdict = Indeterminate
	case s.ExitStatus == e.CleanStatus:
		r.Verdict = Clean
	case s.ExitStatus == e.InfectedStatus:
		r.Verdict = Infected
	default:
		r.Verdict = Indeterminate
	}

	return r, nil
}

// Executable names the scanner program, for reporting
func (e *Exec) Executable() string {
	return e.Command.String()
}
