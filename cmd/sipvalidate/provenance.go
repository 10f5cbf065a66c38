package main

import (
	"fmt"
	"os"

	"github.com/birkland/sipvalidate/descriptor"
	"github.com/birkland/sipvalidate/listing"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var provenance cli.Command = cli.Command{
	Name:  "provenance",
	Usage: "Print the external provenance recorded in a package descriptor",
	Description: `Prints the PREMIS events, then the PREMIS agents, found in the digital
	provenance sections of the descriptor of the given package, as raw XML.`,
	ArgsUsage: "package",
	Action: func(c *cli.Context) error {
		return provenanceAction(c.Args())
	},
}

func provenanceAction(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provenance takes exactly one argument")
	}

	snap, err := listing.Take(args[0])
	if err != nil {
		return err
	}

	rel, ok := descriptor.Locate(snap.Name, snap.Has)
	if !ok {
		return errors.Errorf("no descriptor found in %s", args[0])
	}

	f, err := os.Open(snap.Abs(rel))
	if err != nil {
		return errors.Wrapf(err, "could not open descriptor")
	}
	defer f.Close()

	p, err := descriptor.ExtractProvenance(f)
	if err != nil {
		return err
	}

	for _, xml := range append(p.Events, p.Agents...) {
		fmt.Println(xml)
	}
	return nil
}
