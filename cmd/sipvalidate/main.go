package main

import (
	"log"
	"os"

	"github.com/birkland/sipvalidate/config"
	"github.com/birkland/sipvalidate/internal/logging"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var mainOpts = struct {
	config    string
	logLevel  string
	logFormat string
}{}

func main() {
	app := cli.NewApp()
	app.Name = "sipvalidate"
	app.Usage = "Submission package validation utilities"
	app.EnableBashCompletion = true
	app.Commands = []cli.Command{
		validate,
		unwrap,
		provenance,
		showConfig,
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "YAML configuration file (defaults apply when absent)",
			EnvVar:      "SIPVALIDATE_CONFIG",
			Destination: &mainOpts.config,
		},
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level {debug, info, warn, error}, overriding the configuration",
			EnvVar:      "SIPVALIDATE_LOG_LEVEL",
			Destination: &mainOpts.logLevel,
		},
		cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format {json, console}, overriding the configuration",
			EnvVar:      "SIPVALIDATE_LOG_FORMAT",
			Destination: &mainOpts.logFormat,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// setup loads the configuration, applies command line overrides, and builds
// the logger it describes
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(mainOpts.config)
	if err != nil {
		return nil, nil, err
	}

	if mainOpts.logLevel != "" {
		cfg.Log.Level = mainOpts.logLevel
	}
	if mainOpts.logFormat != "" {
		cfg.Log.Format = mainOpts.logFormat
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not initialize logging")
	}

	return cfg, logger, nil
}
