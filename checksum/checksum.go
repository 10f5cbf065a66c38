// Package checksum computes and compares file digests declared by package descriptors.
//
// Supported algorithms are MD5 and SHA-1.  When a descriptor declares a checksum
// without naming its algorithm, the algorithm is inferred from the length of the hex
// digest.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/birkland/sipvalidate/descriptor"
	"github.com/pkg/errors"
)

// Algorithm is a checksum algorithm name, as declared by a descriptor CHECKSUMTYPE
type Algorithm string

// Supported algorithms
const (
	MD5  Algorithm = "MD5"
	SHA1 Algorithm = "SHA-1"
)

// hex digest lengths
const (
	md5HexLen  = 2 * md5.Size
	sha1HexLen = 2 * sha1.Size
)

// ErrMissingAlgorithm indicates a declared checksum whose algorithm is neither
// declared nor inferable from its length
var ErrMissingAlgorithm = errors.New("missing checksum type")

// UnsupportedAlgorithmError indicates a declared checksum type that cannot be computed
type UnsupportedAlgorithmError struct {
	Algorithm string
}

func (e UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported checksum type: %s", e.Algorithm)
}

// Sums pairs the checksum a descriptor declares for a file with the one computed
// from its content
type Sums struct {
	Algorithm Algorithm
	Described string
	Computed  string
}

// Match reports whether the described and computed checksums agree
func (s *Sums) Match() bool {
	return Equal(s.Described, s.Computed)
}

// Equal compares two hex digests, ignoring case
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Resolve determines the algorithm to use for a declared checksum.  A declared
// algorithm must be supported; otherwise, one is inferred from the checksum.
// SHA1 is accepted as another spelling of SHA-1.
func Resolve(declared, checksum string) (Algorithm, error) {
	switch Algorithm(declared) {
	case MD5, SHA1:
		return Algorithm(declared), nil
	case "SHA1":
		return SHA1, nil
	case "":
		return Infer(checksum)
	default:
		return "", UnsupportedAlgorithmError{Algorithm: declared}
	}
}

// Infer determines a checksum algorithm from the length of a hex digest:
// 32 hex characters is MD5, 40 is SHA-1.  Anything else is ErrMissingAlgorithm.
func Infer(checksum string) (Algorithm, error) {
	if _, err := hex.DecodeString(checksum); err != nil {
		return "", ErrMissingAlgorithm
	}

	switch len(checksum) {
	case md5HexLen:
		return MD5, nil
	case sha1HexLen:
		return SHA1, nil
	default:
		return "", ErrMissingAlgorithm
	}
}

// New returns a hash for the given algorithm
func New(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	default:
		return nil, UnsupportedAlgorithmError{Algorithm: string(alg)}
	}
}

// Info computes the checksum of a file, for comparison with what its
// descriptor entry declares.
//
// If the entry declares no checksum, there is nothing to compare, and Info returns nil
// without reading the file.  Unsupported or unresolvable algorithms are returned as
// UnsupportedAlgorithmError and ErrMissingAlgorithm, respectively.
func Info(file string, entry descriptor.Entry) (*Sums, error) {
	if entry.Checksum == "" {
		return nil, nil
	}

	alg, err := Resolve(entry.Algorithm, entry.Checksum)
	if err != nil {
		return nil, err
	}

	computed, err := Compute(file, alg)
	if err != nil {
		return nil, err
	}

	return &Sums{
		Algorithm: alg,
		Described: entry.Checksum,
		Computed:  computed,
	}, nil
}

// Compute streams the content of a file through the given algorithm, returning
// a lowercase hex digest
func Compute(file string, alg Algorithm) (digest string, err error) {
	h, err := New(alg)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(file)
	if err != nil {
		return "", errors.Wrapf(err, "could not stat %s", file)
	}
	if !info.Mode().IsRegular() {
		return "", errors.Errorf("%s is not a regular file", file)
	}

	f, err := os.Open(file)
	if err != nil {
		return "", errors.Wrapf(err, "could not open %s", file)
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = errors.Wrapf(e, "error closing %s", file)
		}
	}()

	if _, err = io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "could not read %s", file)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
