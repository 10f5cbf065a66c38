package sipvalidate

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Result is the report of one validation run over a package.
//
// Stages that were never reached (because an earlier, fatal check failed)
// leave their fields nil, and are absent when the result is rendered.  A reached
// stage with nothing to report is non-nil but empty; in particular UndescribedFiles
// is an empty, non-nil slice when every file is described.
type Result struct {
	Path                 string
	Outcome              Outcome
	Syntax               map[string]Outcome
	DescriptorValidation *DescriptorValidation
	AccountProject       *AccountProject
	UndescribedFiles     []string
	VirusCheck           map[string]*VirusCheck
	ChecksumCheck        map[string]*ChecksumCheck

	// Error explains a package that exists but could not be examined at all,
	// such as one whose content could not be listed
	Error string
}

// Diagnostic is a single problem reported by a descriptor validator
type Diagnostic struct {
	Level   string `json:"level" yaml:"level"`
	Line    int    `json:"line" yaml:"line"`
	Column  int    `json:"column" yaml:"column"`
	Message string `json:"message" yaml:"message"`
}

// DescriptorValidation records whether the descriptor passed validation
type DescriptorValidation struct {
	Valid  Outcome      `json:"descriptor_valid" yaml:"descriptor_valid"`
	Errors []Diagnostic `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// AccountProject records the submitter identity found in the descriptor.  It is
// informational, and never affects the overall outcome.
type AccountProject struct {
	Valid     Outcome `json:"account_project_valid" yaml:"account_project_valid"`
	Account   string  `json:"account,omitempty" yaml:"account,omitempty"`
	Project   string  `json:"project,omitempty" yaml:"project,omitempty"`
	Submitter string  `json:"submitter,omitempty" yaml:"submitter,omitempty"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// ScannerOutput is the captured output of a virus scanner run
type ScannerOutput struct {
	Stdout string `json:"STDOUT" yaml:"STDOUT"`
	Stderr string `json:"STDERR" yaml:"STDERR"`
}

// VirusCheck is the virus scan result for a single described file
type VirusCheck struct {
	Outcome    Outcome       `json:"outcome" yaml:"outcome"`
	Executable string        `json:"virus_checker_executable,omitempty" yaml:"virus_checker_executable,omitempty"`
	Output     ScannerOutput `json:"scanner_output" yaml:"scanner_output"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// ChecksumCheck is the existence and fixity result for a single described file.
//
// ChecksumMatch is nil when the descriptor declares no checksum for the file, or the
// file does not exist; there is nothing to compare in either case.
type ChecksumCheck struct {
	FileExists    Outcome  `json:"file_exists" yaml:"file_exists"`
	ChecksumMatch *Outcome `json:"checksum_match,omitempty" yaml:"checksum_match,omitempty"`
	Algorithm     string   `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Described     string   `json:"described,omitempty" yaml:"described,omitempty"`
	Computed      string   `json:"computed,omitempty" yaml:"computed,omitempty"`
	Error         string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewResult creates an empty result for the package at the given path
func NewResult(path string) *Result {
	return &Result{
		Path:   path,
		Syntax: make(map[string]Outcome, len(SyntaxChecks)),
	}
}

// Passed reports whether the package validated successfully
func (r *Result) Passed() bool {
	return r.Outcome == Success
}

// wireResult fixes the rendered field names and order.  Pointers distinguish
// a stage that was not reached (absent) from one that produced nothing (empty).
type wireResult struct {
	Path                 string                     `json:"path_to_package" yaml:"path_to_package"`
	Outcome              Outcome                    `json:"outcome" yaml:"outcome"`
	Syntax               map[string]Outcome         `json:"syntax" yaml:"syntax"`
	Error                string                     `json:"error,omitempty" yaml:"error,omitempty"`
	DescriptorValidation *DescriptorValidation      `json:"descriptor_validation,omitempty" yaml:"descriptor_validation,omitempty"`
	AccountProject       *AccountProject            `json:"account_project_validation,omitempty" yaml:"account_project_validation,omitempty"`
	UndescribedFiles     *[]string                  `json:"undescribed_files,omitempty" yaml:"undescribed_files,omitempty"`
	VirusCheck           *map[string]*VirusCheck    `json:"virus_check,omitempty" yaml:"virus_check,omitempty"`
	ChecksumCheck        *map[string]*ChecksumCheck `json:"checksum_check,omitempty" yaml:"checksum_check,omitempty"`
}

func (r Result) wire() wireResult {
	w := wireResult{
		Path:                 r.Path,
		Outcome:              r.Outcome,
		Syntax:               r.Syntax,
		Error:                r.Error,
		DescriptorValidation: r.DescriptorValidation,
		AccountProject:       r.AccountProject,
	}
	if r.UndescribedFiles != nil {
		w.UndescribedFiles = &r.UndescribedFiles
	}
	if r.VirusCheck != nil {
		w.VirusCheck = &r.VirusCheck
	}
	if r.ChecksumCheck != nil {
		w.ChecksumCheck = &r.ChecksumCheck
	}
	return w
}

// MarshalJSON renders the result using its report field names
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

// MarshalYAML renders the result using its report field names
func (r Result) MarshalYAML() (interface{}, error) {
	return r.wire(), nil
}

// Format names a report rendering
type Format string

// Supported report renderings
const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// Render writes the result to w in the given format
func (r *Result) Render(w io.Writer, f Format) error {
	switch f {
	case JSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(r), "could not encode json report")
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return errors.Wrap(err, "could not encode yaml report")
		}
		return errors.Wrap(enc.Close(), "could not finish yaml report")
	default:
		return errors.Errorf("unknown report format %q", f)
	}
}
