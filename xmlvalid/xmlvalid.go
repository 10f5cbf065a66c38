// Package xmlvalid validates package descriptors.
//
// Schema validation of descriptors is delegated to an external validator program,
// which is handed the descriptor in a temporary file and reports problems on its
// standard output, one per line, as
//
//	LEVEL:LINE:COLUMN:MESSAGE
//
// where LEVEL is one of fatal, error or warning.  A descriptor is valid when the
// program exits with status zero and reports no fatal or error diagnostics.
//
// When no validator program is available, WellFormed checks only that the descriptor
// is well formed XML.
package xmlvalid

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/birkland/sipvalidate"
	"github.com/birkland/sipvalidate/internal/executor"
	"github.com/pkg/errors"
)

// Diagnostic levels
const (
	Fatal   = "fatal"
	Error   = "error"
	Warning = "warning"
)

// Report is the verdict of validating a descriptor
type Report struct {
	Valid       bool
	Diagnostics []sipvalidate.Diagnostic
}

// Validator validates descriptor content.  Implementations must not retain
// or modify the given bytes, and must be safe for concurrent use.
type Validator interface {
	Validate(ctx context.Context, descriptor []byte) (*Report, error)
}

// Func is a function that can be used to satisfy the Validator interface
type Func func(ctx context.Context, descriptor []byte) (*Report, error)

// Validate descriptor content
func (f Func) Validate(ctx context.Context, descriptor []byte) (*Report, error) {
	return f(ctx, descriptor)
}

// Exec validates descriptors with an external validator program
type Exec struct {
	Command executor.Command // the descriptor file path is appended as a final argument
	Timeout time.Duration    // zero means no timeout
	TempDir string           // where descriptors are staged, default os.TempDir()
}

// Validate stages the descriptor in a temporary file and runs the validator
// program against it.  The temporary file is removed before returning.
func (e *Exec) Validate(ctx context.Context, descriptor []byte) (*Report, error) {
	tmp, err := ioutil.TempFile(e.TempDir, "descriptor-*.xml")
	if err != nil {
		return nil, errors.Wrap(err, "could not create temporary descriptor file")
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(descriptor)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not write temporary descriptor file %s", tmp.Name())
	}

	s, err := e.Command.Run(ctx, e.Timeout, tmp.Name())
	if err != nil {
		return nil, err
	}

	if s.TimedOut {
		return &Report{
			Diagnostics: []sipvalidate.Diagnostic{{
				Level:   Fatal,
				Message: "descriptor validator timed out after " + e.Timeout.String(),
			}},
		}, nil
	}

	r := &Report{Diagnostics: ParseDiagnostics(strings.NewReader(s.Stdout))}
	r.Valid = s.ExitStatus == 0 && !hasErrors(r.Diagnostics)

	if !r.Valid && !hasErrors(r.Diagnostics) {
		msg := strings.TrimSpace(s.Stderr)
		if msg == "" {
			msg = "descriptor validator exited with status " + strconv.Itoa(s.ExitStatus)
		}
		r.Diagnostics = append(r.Diagnostics, sipvalidate.Diagnostic{Level: Error, Message: msg})
	}

	return r, nil
}

// ParseDiagnostics reads LEVEL:LINE:COLUMN:MESSAGE lines.  Lines in any other form
// are ignored.
func ParseDiagnostics(r io.Reader) []sipvalidate.Diagnostic {
	var diagnostics []sipvalidate.Diagnostic

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.SplitN(strings.TrimSpace(scanner.Text()), ":", 4)
		if len(parts) != 4 {
			continue
		}

		level := strings.ToLower(strings.TrimSpace(parts[0]))
		if level != Fatal && level != Error && level != Warning {
			continue
		}

		line, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		column, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			continue
		}

		diagnostics = append(diagnostics, sipvalidate.Diagnostic{
			Level:   level,
			Line:    line,
			Column:  column,
			Message: strings.TrimSpace(parts[3]),
		})
	}

	return diagnostics
}

func hasErrors(diagnostics []sipvalidate.Diagnostic) bool {
	for _, d := range diagnostics {
		if d.Level == Fatal || d.Level == Error {
			return true
		}
	}
	return false
}

// WellFormed is a Validator that only checks that a descriptor is well formed
// XML with a single root element
type WellFormed struct{}

// Validate checks descriptor well-formedness
func (WellFormed) Validate(ctx context.Context, descriptor []byte) (*Report, error) {
	dec := xml.NewDecoder(bytes.NewReader(descriptor))
	roots := 0
	depth := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			d := sipvalidate.Diagnostic{Level: Fatal, Message: err.Error()}
			if syntax, ok := err.(*xml.SyntaxError); ok {
				d.Line = syntax.Line
				d.Message = syntax.Msg
			}
			return &Report{Diagnostics: []sipvalidate.Diagnostic{d}}, nil
		}

		switch tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}

	if roots != 1 {
		return &Report{Diagnostics: []sipvalidate.Diagnostic{{
			Level:   Fatal,
			Message: "descriptor must have exactly one root element, found " + strconv.Itoa(roots),
		}}}, nil
	}

	return &Report{Valid: true}, nil
}
