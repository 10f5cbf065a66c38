package sipvalidate

import (
	"fmt"
	"strings"
)

// Outcome names the result of a single check
type Outcome int

// Check outcomes.  The zero value is Unknown, which never appears in a finished report.
const (
	Unknown Outcome = iota
	Success
	Failure
	Indeterminate
	NotImplemented
)

var outcomeNames = map[Outcome]string{
	Unknown:        "unknown",
	Success:        "success",
	Failure:        "failure",
	Indeterminate:  "indeterminate",
	NotImplemented: "test_not_implemented",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ParseOutcome parses the string form of an outcome.  Unrecognized
// strings parse as Unknown.
func ParseOutcome(s string) Outcome {
	s = strings.ToLower(strings.TrimSpace(s))
	for o, name := range outcomeNames {
		if name == s {
			return o
		}
	}
	return Unknown
}

// Of returns Success if ok is true, and Failure otherwise
func Of(ok bool) Outcome {
	if ok {
		return Success
	}
	return Failure
}

// MarshalText renders the outcome as its lower case name
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an outcome name, rejecting anything unknown
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed := ParseOutcome(string(text))
	if parsed == Unknown && strings.TrimSpace(string(text)) != outcomeNames[Unknown] {
		return fmt.Errorf("unknown outcome %q", text)
	}
	*o = parsed
	return nil
}

// Syntax check names, in the order they are performed
const (
	CheckPackageIsDirectory = "package_is_directory"
	CheckDescriptorFound    = "descriptor_found"
	CheckDescriptorIsFile   = "descriptor_is_file"
	CheckContentFileFound   = "content_file_found"
)

// SyntaxChecks lists the syntax check names in execution order
var SyntaxChecks = []string{
	CheckPackageIsDirectory,
	CheckDescriptorFound,
	CheckDescriptorIsFile,
	CheckContentFileFound,
}
