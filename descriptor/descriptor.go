package descriptor

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// XML namespaces understood in descriptors
const (
	METSNamespace  = "http://www.loc.gov/METS/"
	XLinkNamespace = "http://www.w3.org/1999/xlink"
)

// Extension is the preferred descriptor file extension.  AltExtension is accepted
// only when no descriptor with the preferred extension is present.
const (
	Extension    = ".xml"
	AltExtension = ".XML"
)

// Entry is a single file declared by a descriptor
type Entry struct {
	Path      string // package-relative, solidus delimited
	Checksum  string // declared CHECKSUM, empty if absent
	Algorithm string // declared CHECKSUMTYPE, empty if absent
}

// Manifest is the set of declared files, keyed by relative path
type Manifest map[string]Entry

// Agreement identifies who submitted a package, and under which account
// and project
type Agreement struct {
	Account   string
	Project   string
	Submitter string
}

// Descriptor is the content of a package descriptor relevant to validation
type Descriptor struct {
	Manifest  Manifest
	Agreement Agreement
}

// DuplicateEntryError indicates a descriptor that declares the same file twice
type DuplicateEntryError struct {
	Path string
}

func (e DuplicateEntryError) Error() string {
	return fmt.Sprintf("file %s is declared more than once", e.Path)
}

// Locate finds the descriptor for the named package, given a function that reports
// whether a content-root relative path is present.  NAME.xml wins over NAME.XML
// when both are present; the loser is then ordinary content.
func Locate(packageName string, present func(relpath string) bool) (string, bool) {
	for _, name := range []string{packageName + Extension, packageName + AltExtension} {
		if present(name) {
			return name, true
		}
	}
	return "", false
}

// Read reads and parses the descriptor at the given path
func Read(file string) (d *Descriptor, err error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open descriptor at %s", file)
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = errors.Wrapf(e, "error closing descriptor at %s", file)
		}
	}()

	d, err = Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse descriptor at %s", file)
	}
	return d, nil
}

// ParseManifest reads the file manifest declared by the descriptor at the given path
func ParseManifest(file string) (Manifest, error) {
	d, err := Read(file)
	if err != nil {
		return nil, err
	}
	return d.Manifest, nil
}

type pendingFile struct {
	checksum  string
	algorithm string
	href      string
}

// Parse parses a descriptor from a byte stream.
//
// Every METS file element with an FLocat child contributes one manifest entry,
// located by the first FLocat's xlink:href.  File elements may nest; an FLocat
// belongs to the innermost enclosing file.
func Parse(r io.Reader) (*Descriptor, error) {
	d := &Descriptor{Manifest: make(Manifest)}
	dec := xml.NewDecoder(r)

	var files []*pendingFile
	var submitterDepth int // depth of an enclosing submitter agent, or 0
	depth := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "malformed descriptor")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++

			switch {
			case isMETS(t.Name, "file"):
				files = append(files, &pendingFile{
					checksum:  attr(t, "", "CHECKSUM"),
					algorithm: attr(t, "", "CHECKSUMTYPE"),
				})

			case isMETS(t.Name, "FLocat"):
				if len(files) > 0 && files[len(files)-1].href == "" {
					files[len(files)-1].href = attr(t, XLinkNamespace, "href")
				}

			case t.Name.Local == "AGREEMENT_INFO":
				d.Agreement.Account = attr(t, "", "ACCOUNT")
				d.Agreement.Project = attr(t, "", "PROJECT")

			case isMETS(t.Name, "agent"):
				if attr(t, "", "ROLE") == "OTHER" && attr(t, "", "OTHERROLE") == "SUBMITTER" {
					submitterDepth = depth
				}

			case isMETS(t.Name, "name") && submitterDepth > 0 && d.Agreement.Submitter == "":
				var name string
				if err := dec.DecodeElement(&name, &t); err != nil {
					return nil, errors.Wrap(err, "malformed submitter name")
				}
				d.Agreement.Submitter = strings.TrimSpace(name)
				depth--
			}

		case xml.EndElement:
			if depth == submitterDepth {
				submitterDepth = 0
			}
			depth--

			if isMETS(t.Name, "file") && len(files) > 0 {
				f := files[len(files)-1]
				files = files[:len(files)-1]

				if f.href == "" {
					continue
				}

				entry := Entry{
					Path:      cleanHref(f.href),
					Checksum:  strings.TrimSpace(f.checksum),
					Algorithm: strings.TrimSpace(f.algorithm),
				}
				if _, dup := d.Manifest[entry.Path]; dup {
					return nil, DuplicateEntryError{Path: entry.Path}
				}
				d.Manifest[entry.Path] = entry
			}
		}
	}

	return d, nil
}

func isMETS(n xml.Name, local string) bool {
	return n.Space == METSNamespace && n.Local == local
}

func attr(e xml.StartElement, space, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local && a.Name.Space == space {
			return a.Value
		}
	}
	return ""
}

func cleanHref(href string) string {
	return strings.TrimLeft(path.Clean(strings.TrimSpace(href)), "/")
}
