package validation

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/birkland/sipvalidate"
	"github.com/birkland/sipvalidate/checksum"
	"github.com/birkland/sipvalidate/listing"
	"github.com/birkland/sipvalidate/scan"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// eachDescribed calls f once per described file, using at most v.workers
// goroutines at a time
func (v *Validator) eachDescribed(r *run, f func(rel string)) {
	g := new(errgroup.Group)
	g.SetLimit(v.workers)

	for _, rel := range r.described {
		rel := rel
		g.Go(func() error {
			f(rel)
			return nil
		})
	}

	_ = g.Wait()
}

// present finds a described file in the package listing.  Directories, and links
// that lead nowhere, are not present.
func present(r *run, rel string) (listing.Entry, bool) {
	e, ok := r.snap.Lookup(rel)
	if !ok || e.Dir {
		return listing.Entry{}, false
	}
	if _, err := os.Stat(e.Path); err != nil {
		return listing.Entry{}, false
	}
	return e, true
}

// virusCheck scans every described file
func (v *Validator) virusCheck(ctx context.Context, r *run) stageResult {
	var executable string
	if e, ok := v.scanner.(interface{ Executable() string }); ok {
		executable = e.Executable()
	}

	checks := make(map[string]*sipvalidate.VirusCheck, len(r.described))
	var mu sync.Mutex

	v.eachDescribed(r, func(rel string) {
		c := v.scanFile(ctx, r, rel)
		c.Executable = executable

		if c.Outcome != sipvalidate.Success {
			r.log.Warn("virus check did not pass",
				zap.String("file", rel),
				zap.Stringer("outcome", c.Outcome),
				zap.String("error", c.Error))
		}

		mu.Lock()
		checks[rel] = c
		mu.Unlock()
	})

	r.result.VirusCheck = checks
	if err := ctx.Err(); err != nil {
		return failed(errors.Wrap(err, "virus check interrupted"))
	}
	return proceed()
}

func (v *Validator) scanFile(ctx context.Context, r *run, rel string) *sipvalidate.VirusCheck {
	c := &sipvalidate.VirusCheck{Outcome: sipvalidate.Indeterminate}

	e, ok := present(r, rel)
	if !ok {
		c.Error = "file is not present in the package"
		return c
	}

	if err := ctx.Err(); err != nil {
		c.Error = err.Error()
		return c
	}

	res, err := v.scanner.Scan(ctx, e.Path)
	if err != nil {
		c.Error = err.Error()
		return c
	}

	c.Output = sipvalidate.ScannerOutput{Stdout: res.Stdout, Stderr: res.Stderr}
	switch res.Verdict {
	case scan.Clean:
		c.Outcome = sipvalidate.Success
	case scan.Infected:
		c.Outcome = sipvalidate.Failure
	default:
		if res.TimedOut {
			c.Error = "virus scan timed out"
		}
	}

	return c
}

// checksumCheck verifies that every described file exists, and that its content
// matches any checksum the descriptor declares for it
func (v *Validator) checksumCheck(ctx context.Context, r *run) stageResult {
	checks := make(map[string]*sipvalidate.ChecksumCheck, len(r.described))
	var mu sync.Mutex

	v.eachDescribed(r, func(rel string) {
		c := checkFile(ctx, r, rel)

		if c.FileExists != sipvalidate.Success {
			r.log.Warn("described file is missing", zap.String("file", rel))
		} else if c.ChecksumMatch != nil && *c.ChecksumMatch != sipvalidate.Success {
			r.log.Warn("checksum mismatch",
				zap.String("file", rel),
				zap.String("described", c.Described),
				zap.String("computed", c.Computed),
				zap.String("error", c.Error))
		}

		mu.Lock()
		checks[rel] = c
		mu.Unlock()
	})

	r.result.ChecksumCheck = checks
	if err := ctx.Err(); err != nil {
		return failed(errors.Wrap(err, "checksum check interrupted"))
	}
	return proceed()
}

func checkFile(ctx context.Context, r *run, rel string) *sipvalidate.ChecksumCheck {
	c := &sipvalidate.ChecksumCheck{FileExists: sipvalidate.Failure}

	e, ok := present(r, rel)
	if !ok {
		return c
	}
	c.FileExists = sipvalidate.Success

	entry := r.descriptor.Manifest[rel]

	mismatch := func(err error) *sipvalidate.ChecksumCheck {
		o := sipvalidate.Failure
		c.ChecksumMatch = &o
		c.Error = err.Error()
		return c
	}

	if entry.Checksum != "" {
		if err := ctx.Err(); err != nil {
			return mismatch(err)
		}
	}

	sums, err := checksum.Info(e.Path, entry)
	if err != nil {
		if _, unsupported := errors.Cause(err).(checksum.UnsupportedAlgorithmError); unsupported {
			c.Algorithm = entry.Algorithm
		}
		c.Described = strings.ToUpper(entry.Checksum)
		return mismatch(err)
	}

	if sums == nil {
		return c
	}

	o := sipvalidate.Of(sums.Match())
	c.ChecksumMatch = &o
	c.Algorithm = string(sums.Algorithm)
	c.Described = strings.ToUpper(sums.Described)
	c.Computed = strings.ToUpper(sums.Computed)

	return c
}
