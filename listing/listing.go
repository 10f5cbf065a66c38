// Package listing takes an immutable snapshot of the content of a submission package,
// and classifies that content against a descriptor manifest.
package listing

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// FilesDir is the conventional content directory within a package.  Packages
// without one keep their content directly under the package root.
const FilesDir = "files"

// Version control metadata directories.  Anything beneath them is invisible to validation.
var vcsDirs = map[string]bool{
	".git": true,
	".svn": true,
	".hg":  true,
	".bzr": true,
	"CVS":  true,
}

// Entry is a single file or directory found in a package
type Entry struct {
	Path string // absolute filesystem path
	Rel  string // relative to the content root, solidus delimited
	Dir  bool
}

// Snapshot is the content listing of a package: every file and directory beneath
// its content root, in traversal order.  It is never modified once taken.
type Snapshot struct {
	Name        string // package name, i.e. basename of Root
	Root        string
	ContentRoot string
	entries     []Entry
	index       map[string]int
}

// ContentRoot returns the directory holding the content of the package at
// root: its files/ subdirectory if there is one, otherwise the root itself.
func ContentRoot(root string) string {
	files := filepath.Join(root, FilesDir)
	if info, err := os.Stat(files); err == nil && info.IsDir() {
		return files
	}
	return root
}

// Take walks the content root of the package at the given path, and returns
// a snapshot of everything in it.
//
// Directory entries are visited in lexical order, so two snapshots of an unmodified
// package list the same entries in the same order.  Symbolic links are followed,
// but a directory reachable through several links is only listed beneath once.
// A link that cannot be resolved is listed as a file.
func Take(root string) (*Snapshot, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "could not calculate absolute path of %s", root)
	}

	s := &Snapshot{
		Name:        filepath.Base(abs),
		Root:        abs,
		ContentRoot: ContentRoot(abs),
		index:       make(map[string]int),
	}

	// real paths of directories already listed, so symlink cycles end
	visited := make(map[string]bool)

	err = fsWalk(s.ContentRoot, func(ospath string, de *godirwalk.Dirent) (bool, error) {
		rel, err := filepath.Rel(s.ContentRoot, ospath)
		if err != nil {
			return dontGoDeeper, errors.Wrapf(err, "could not relativize %s", ospath)
		}
		if rel == "." {
			return enter(visited, ospath)
		}

		rel = filepath.ToSlash(rel)
		if isVCS(rel) {
			return dontGoDeeper, nil
		}

		isDir, err := de.IsDirOrSymlinkToDir()
		if err != nil {
			if !de.IsSymlink() {
				return dontGoDeeper, errors.Wrapf(err, "could not determine type of %s", ospath)
			}
			// dangling or unresolvable symlinks are listed as plain files
			isDir = false
		}

		s.index[rel] = len(s.entries)
		s.entries = append(s.entries, Entry{
			Path: ospath,
			Rel:  rel,
			Dir:  isDir,
		})

		if isDir {
			return enter(visited, ospath)
		}
		return dontGoDeeper, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not list content of %s", root)
	}

	return s, nil
}

// enter decides whether to descend into a directory: only if its real path has
// not been seen before
func enter(visited map[string]bool, dir string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return dontGoDeeper, errors.Wrapf(err, "could not resolve %s", dir)
	}
	if visited[resolved] {
		return dontGoDeeper, nil
	}
	visited[resolved] = true
	return goDeeper, nil
}

// Entries returns every entry in traversal order
func (s *Snapshot) Entries() []Entry {
	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	return entries
}

// Files returns the non-directory entries in traversal order
func (s *Snapshot) Files() []Entry {
	var files []Entry
	for _, e := range s.entries {
		if !e.Dir {
			files = append(files, e)
		}
	}
	return files
}

// Lookup finds an entry by its content-relative path
func (s *Snapshot) Lookup(rel string) (Entry, bool) {
	i, ok := s.index[rel]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Has reports whether an entry exists at the given content-relative path
func (s *Snapshot) Has(rel string) bool {
	_, ok := s.index[rel]
	return ok
}

// Abs returns the filesystem path of a content-relative path, whether or not
// anything exists there
func (s *Snapshot) Abs(rel string) string {
	return filepath.Join(s.ContentRoot, filepath.FromSlash(rel))
}

func isVCS(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		if vcsDirs[segment] {
			return true
		}
	}
	return false
}
