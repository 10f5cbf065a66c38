package main

import (
	"os"

	"github.com/urfave/cli"
)

var showConfig cli.Command = cli.Command{
	Name:  "config",
	Usage: "Print the effective configuration as YAML",
	Description: `Prints the configuration that validation would use: the defaults, overlaid
	with the configuration file named by -c (or SIPVALIDATE_CONFIG), and any
	command line logging overrides.  The output is itself a valid configuration
	file.`,
	Action: func(c *cli.Context) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		return cfg.Write(os.Stdout)
	},
}
