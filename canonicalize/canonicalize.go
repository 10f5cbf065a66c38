// Package canonicalize unpacks archived submission packages into directories,
// so that they can be validated.
//
// Archives are recognized by name: anything ending in .zip is unzipped, and
// anything with a .tar or .tgz extension (including compressed .tar.gz and
// similar) is untarred.  Unpacking is performed by external programs.
package canonicalize

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/birkland/sipvalidate/config"
	"github.com/birkland/sipvalidate/internal/executor"
	"github.com/pkg/errors"
)

// ParameterError indicates an archive or destination unfit for unwrapping
type ParameterError struct {
	Path   string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("cannot unwrap %s: %s", e.Path, e.Reason)
}

// Unwrapper unpacks archives using external programs
type Unwrapper struct {
	Tar     executor.Command // invoked as Tar -xf ARCHIVE -C DEST
	Unzip   executor.Command // invoked as Unzip ARCHIVE -d DEST
	Timeout time.Duration
}

// New creates an Unwrapper from configuration
func New(cfg config.UnwrapConfig) *Unwrapper {
	return &Unwrapper{
		Tar:     executor.Command{cfg.Tar},
		Unzip:   executor.Command{cfg.Unzip},
		Timeout: cfg.Timeout,
	}
}

// Unwrap unpacks the archive into dest, which must be an existing, writable
// directory.  Problems with either path are returned as *ParameterError.
func (u *Unwrapper) Unwrap(ctx context.Context, archive, dest string) error {
	if err := checkArchive(archive); err != nil {
		return err
	}
	if err := checkDest(dest); err != nil {
		return err
	}

	var err error
	switch kind(archive) {
	case zipArchive:
		_, err = u.Unzip.RunExpectZero(ctx, u.Timeout, archive, "-d", dest)
	case tarArchive:
		_, err = u.Tar.RunExpectZero(ctx, u.Timeout, "-xf", archive, "-C", dest)
	default:
		return &ParameterError{Path: archive, Reason: "not a zip or tar file"}
	}

	return err
}

type archiveKind int

const (
	unknownArchive archiveKind = iota
	zipArchive
	tarArchive
)

func kind(archive string) archiveKind {
	name := strings.ToLower(filepath.Base(archive))
	switch {
	case strings.HasSuffix(name, ".zip"):
		return zipArchive
	case strings.Contains(name, ".tar"), strings.HasSuffix(name, ".tgz"):
		return tarArchive
	default:
		return unknownArchive
	}
}

func checkArchive(archive string) error {
	info, err := os.Stat(archive)
	if err != nil || !info.Mode().IsRegular() {
		return &ParameterError{Path: archive, Reason: "no file exists at input path"}
	}

	f, err := os.Open(archive)
	if err != nil {
		return &ParameterError{Path: archive, Reason: "read access denied"}
	}
	return errors.Wrapf(f.Close(), "could not close %s", archive)
}

func checkDest(dest string) error {
	info, err := os.Stat(dest)
	if err != nil || !info.IsDir() {
		return &ParameterError{Path: dest, Reason: "output path does not exist, or is not a directory"}
	}

	tmp, err := ioutil.TempFile(dest, ".unwrap-writable-*")
	if err != nil {
		return &ParameterError{Path: dest, Reason: "write access denied"}
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "could not close %s", tmp.Name())
	}
	return errors.Wrapf(os.Remove(tmp.Name()), "could not remove %s", tmp.Name())
}
