package listing

import (
	"github.com/birkland/sipvalidate/descriptor"
)

// Undescribed lists the content-relative paths of files present in the package,
// but absent from its manifest.  The descriptor itself and directories are never
// undescribed.  Paths are returned in traversal order; the result is never nil.
func Undescribed(s *Snapshot, m descriptor.Manifest, descriptorRel string) []string {
	undescribed := []string{}

	for _, e := range s.entries {
		if e.Dir || e.Rel == descriptorRel {
			continue
		}

		if _, described := m[e.Rel]; !described {
			undescribed = append(undescribed, e.Rel)
		}
	}

	return undescribed
}
