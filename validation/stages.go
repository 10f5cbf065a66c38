package validation

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/birkland/sipvalidate"
	"github.com/birkland/sipvalidate/descriptor"
	"github.com/birkland/sipvalidate/listing"
	"github.com/birkland/sipvalidate/xmlvalid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// syntax checks that the package has the expected shape, one check at a time.
// The first failed check is fatal.
func (v *Validator) syntax(ctx context.Context, r *run) stageResult {
	check := func(name string, ok bool) bool {
		r.result.Syntax[name] = sipvalidate.Of(ok)
		return ok
	}

	if !check(sipvalidate.CheckPackageIsDirectory, isDir(r.path)) {
		return fatal("package is not a directory")
	}

	snap, err := listing.Take(r.path)
	if err != nil {
		r.result.Error = err.Error()
		return fatal("could not list package content: " + err.Error())
	}
	r.snap = snap

	rel, found := descriptor.Locate(r.snap.Name, r.snap.Has)
	if !check(sipvalidate.CheckDescriptorFound, found) {
		return fatal(fmt.Sprintf("no descriptor named %s%s", r.snap.Name, descriptor.Extension))
	}
	r.descriptorRel = rel

	if !check(sipvalidate.CheckDescriptorIsFile, r.descriptorIsFile()) {
		return fatal(fmt.Sprintf("descriptor %s is not a file", rel))
	}

	if !check(sipvalidate.CheckContentFileFound, r.hasContent()) {
		return fatal("no content files")
	}

	return proceed()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (r *run) descriptorIsFile() bool {
	e, ok := r.snap.Lookup(r.descriptorRel)
	if !ok || e.Dir {
		return false
	}

	info, err := os.Stat(e.Path)
	return err == nil && info.Mode().IsRegular()
}

func (r *run) hasContent() bool {
	for _, e := range r.snap.Files() {
		if e.Rel != r.descriptorRel {
			return true
		}
	}
	return false
}

// validateDescriptor hands the descriptor to the descriptor validator and, if it
// is valid, parses its manifest.  An invalid or unparseable descriptor is fatal.
func (v *Validator) validateDescriptor(ctx context.Context, r *run) stageResult {
	dv := &sipvalidate.DescriptorValidation{}
	r.result.DescriptorValidation = dv

	invalid := func(err error) stageResult {
		dv.Valid = sipvalidate.Failure
		dv.Errors = append(dv.Errors, sipvalidate.Diagnostic{
			Level:   xmlvalid.Fatal,
			Message: err.Error(),
		})
		return fatal(err.Error())
	}

	content, err := ioutil.ReadFile(r.snap.Abs(r.descriptorRel))
	if err != nil {
		return invalid(errors.Wrapf(err, "could not read descriptor %s", r.descriptorRel))
	}

	report, err := v.descriptors.Validate(ctx, content)
	if err != nil {
		return invalid(errors.Wrap(err, "could not validate descriptor"))
	}

	dv.Valid = sipvalidate.Of(report.Valid)
	dv.Errors = report.Diagnostics
	if !report.Valid {
		return fatal(fmt.Sprintf("descriptor is invalid, %d diagnostics", len(report.Diagnostics)))
	}

	d, err := descriptor.Parse(bytes.NewReader(content))
	if err != nil {
		return invalid(errors.Wrapf(err, "could not parse descriptor %s", r.descriptorRel))
	}

	r.descriptor = d
	r.described = sortedPaths(d.Manifest)

	return proceed()
}

// accountProject records who submitted the package.  It never affects the outcome.
func (v *Validator) accountProject(ctx context.Context, r *run) stageResult {
	a := r.descriptor.Agreement

	ap := &sipvalidate.AccountProject{
		Valid:     sipvalidate.NotImplemented,
		Account:   a.Account,
		Project:   a.Project,
		Submitter: a.Submitter,
	}
	r.result.AccountProject = ap

	allowed, checked := v.cfg.AccountAllowed(a.Account, a.Project)
	if !checked {
		return proceed()
	}

	ap.Valid = sipvalidate.Of(allowed)
	if !allowed {
		ap.Error = fmt.Sprintf("account %q project %q is not configured", a.Account, a.Project)
		r.log.Debug("unknown account or project",
			zap.String("account", a.Account),
			zap.String("project", a.Project))
	}

	return proceed()
}

// undescribed lists package files the descriptor does not mention
func (v *Validator) undescribed(ctx context.Context, r *run) stageResult {
	r.result.UndescribedFiles = listing.Undescribed(r.snap, r.descriptor.Manifest, r.descriptorRel)
	if n := len(r.result.UndescribedFiles); n > 0 {
		r.log.Debug("undescribed files", zap.Int("count", n))
	}
	return proceed()
}
