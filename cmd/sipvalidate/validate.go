package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/birkland/sipvalidate"
	"github.com/birkland/sipvalidate/validation"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var validateOpts = struct {
	format string
}{}

var validate cli.Command = cli.Command{
	Name:  "validate",
	Usage: "Validate submission packages",
	Description: `Given one or more package directories, validate each of them and
	print a validation report per package to standard output.

	A package is a directory named NAME, containing a descriptor NAME.xml
	(or NAME.XML) alongside its content files, either directly or within a
	files/ subdirectory.  Validation checks the shape of the package, validates
	the descriptor, lists any files the descriptor does not describe, and
	virus scans and checksums every file it does describe.

	Packages are validated concurrently.  The exit status is 1 if any package
	fails validation.

	For example, the following validates two packages and renders the reports
	as YAML

	  sipvalidate validate -f yaml /var/sips/UF0000001 /var/sips/UF0000002
	`,
	ArgsUsage: "package...",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:        "format, f",
			Usage:       "Report format {json, yaml}",
			Value:       string(sipvalidate.JSON),
			Destination: &validateOpts.format,
		},
	},

	Action: func(c *cli.Context) error {
		return validateAction(c.Args())
	},
}

func validateAction(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no packages given")
	}

	format := sipvalidate.Format(validateOpts.format)
	if format != sipvalidate.JSON && format != sipvalidate.YAML {
		return fmt.Errorf("unknown report format %q", validateOpts.format)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() // nolint: errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	v := validation.New(cfg, validation.WithLogger(logger))

	results := make([]*sipvalidate.Result, len(args))
	var g errgroup.Group
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			results[i] = v.Validate(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	failed, err := report(os.Stdout, results, format)
	if err != nil {
		return err
	}

	if failed > 0 {
		logger.Warn("packages failed validation", zap.Int("failed", failed), zap.Int("total", len(args)))
		return cli.NewExitError(fmt.Sprintf("%d of %d packages failed validation", failed, len(args)), 1)
	}
	return nil
}

// report renders results in order, returning the number of failed packages
func report(w io.Writer, results []*sipvalidate.Result, format sipvalidate.Format) (int, error) {
	failed := 0
	for _, r := range results {
		if format == sipvalidate.YAML && len(results) > 1 {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return failed, err
			}
		}
		if err := r.Render(w, format); err != nil {
			return failed, err
		}
		if !r.Passed() {
			failed++
		}
	}
	return failed, nil
}
