// Package validation runs the package validation pipeline.
//
// A pipeline run executes a fixed sequence of stages over a single package,
// accumulating a sipvalidate.Result as it goes:
//
//	syntax -> descriptor validation -> account/project -> undescribed files -> virus check -> checksum check
//
// Failure of a syntax check or of descriptor validation stops the run, leaving
// the later stages absent from the result.  Every other stage always runs, and
// contributes to the final outcome.
package validation

import (
	"context"
	"sort"

	"github.com/birkland/sipvalidate"
	"github.com/birkland/sipvalidate/config"
	"github.com/birkland/sipvalidate/descriptor"
	"github.com/birkland/sipvalidate/internal/executor"
	"github.com/birkland/sipvalidate/listing"
	"github.com/birkland/sipvalidate/scan"
	"github.com/birkland/sipvalidate/xmlvalid"
	"go.uber.org/zap"
)

// Validator validates packages.  A Validator holds no per-package state, and may
// validate any number of packages concurrently.
type Validator struct {
	cfg         *config.Config
	scanner     scan.Scanner
	descriptors xmlvalid.Validator
	logger      *zap.Logger
	workers     int
}

// Option customizes a Validator
type Option func(*Validator)

// WithScanner replaces the configured virus scanner
func WithScanner(s scan.Scanner) Option {
	return func(v *Validator) {
		v.scanner = s
	}
}

// WithDescriptorValidator replaces the configured descriptor validator
func WithDescriptorValidator(d xmlvalid.Validator) Option {
	return func(v *Validator) {
		v.descriptors = d
	}
}

// WithLogger sets the logger.  By default nothing is logged.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		v.logger = l
	}
}

// New creates a Validator from the given configuration.  A nil configuration
// means config.DefaultConfig().
func New(cfg *config.Config, opts ...Option) *Validator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	v := &Validator{
		cfg:     cfg,
		logger:  zap.NewNop(),
		workers: cfg.Workers,
		scanner: &scan.Exec{
			Command:        executor.Command(cfg.VirusScanner.Command),
			CleanStatus:    cfg.VirusScanner.CleanStatus,
			InfectedStatus: cfg.VirusScanner.InfectedStatus,
			Timeout:        cfg.VirusScanner.Timeout,
		},
	}

	if len(cfg.DescriptorValidator.Command) > 0 {
		v.descriptors = &xmlvalid.Exec{
			Command: executor.Command(cfg.DescriptorValidator.Command),
			Timeout: cfg.DescriptorValidator.Timeout,
			TempDir: cfg.DescriptorValidator.TempDir,
		}
	} else {
		v.descriptors = xmlvalid.WellFormed{}
	}

	if v.workers < 1 {
		v.workers = 1
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// run is the state of validating one package.  Each stage reads what earlier
// stages established, and writes into result.
type run struct {
	path          string
	result        *sipvalidate.Result
	snap          *listing.Snapshot
	descriptorRel string
	descriptor    *descriptor.Descriptor
	described     []string // manifest paths, sorted
	log           *zap.Logger
}

// stageResult tells the pipeline whether to go on after a stage
type stageResult struct {
	fatal  bool   // stop the pipeline, the package has failed
	reason string // why a fatal stage failed
	err    error  // unexpected error, already recorded in the stage's part of the result
}

func proceed() stageResult {
	return stageResult{}
}

func fatal(reason string) stageResult {
	return stageResult{fatal: true, reason: reason}
}

func failed(err error) stageResult {
	return stageResult{err: err}
}

type stage struct {
	name string
	fn   func(context.Context, *run) stageResult
}

func (v *Validator) stages() []stage {
	return []stage{
		{"syntax", v.syntax},
		{"descriptor_validation", v.validateDescriptor},
		{"account_project_validation", v.accountProject},
		{"undescribed_files", v.undescribed},
		{"virus_check", v.virusCheck},
		{"checksum_check", v.checksumCheck},
	}
}

// Validate validates the package rooted at the given path.  It never fails;
// every problem with the package, or with validating it, is reported in the result.
func (v *Validator) Validate(ctx context.Context, path string) *sipvalidate.Result {
	r := &run{
		path:   path,
		result: sipvalidate.NewResult(path),
		log:    v.logger.With(zap.String("package", path)),
	}

	unexpected := false
	for _, s := range v.stages() {
		r.log.Debug("running stage", zap.String("stage", s.name))

		res := s.fn(ctx, r)
		if res.err != nil {
			unexpected = true
			r.log.Warn("stage error", zap.String("stage", s.name), zap.Error(res.err))
		}
		if res.fatal {
			r.log.Info("validation stopped",
				zap.String("stage", s.name),
				zap.String("reason", res.reason))
			r.result.Outcome = sipvalidate.Failure
			return r.result
		}
	}

	r.result.Outcome = sipvalidate.Of(!unexpected && virusClean(r.result) && checksumsPass(r.result))
	r.log.Info("validation finished", zap.Stringer("outcome", r.result.Outcome))

	return r.result
}

func virusClean(r *sipvalidate.Result) bool {
	for _, c := range r.VirusCheck {
		if c.Outcome != sipvalidate.Success {
			return false
		}
	}
	return true
}

func checksumsPass(r *sipvalidate.Result) bool {
	for _, c := range r.ChecksumCheck {
		if c.FileExists != sipvalidate.Success {
			return false
		}
		if c.ChecksumMatch != nil && *c.ChecksumMatch != sipvalidate.Success {
			return false
		}
	}
	return true
}

func sortedPaths(m descriptor.Manifest) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
