package main

import (
	"context"
	"fmt"

	"github.com/birkland/sipvalidate/canonicalize"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var unwrap cli.Command = cli.Command{
	Name:  "unwrap",
	Usage: "Unpack an archived package",
	Description: `Unpacks a zip or tar archive into an existing destination directory,
	using the unzip and tar programs named in the configuration.  Archives are
	recognized by their .zip or .tar extension.

	  sipvalidate unwrap /var/incoming/UF0000001.tar /var/processing
	`,
	ArgsUsage: "archive dest",
	Action: func(c *cli.Context) error {
		return unwrapAction(c.Args())
	},
}

func unwrapAction(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("unwrap takes exactly two arguments")
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() // nolint: errcheck

	if err := canonicalize.New(cfg.Unwrap).Unwrap(context.Background(), args[0], args[1]); err != nil {
		return err
	}

	logger.Info("unwrapped package", zap.String("archive", args[0]), zap.String("dest", args[1]))
	return nil
}
