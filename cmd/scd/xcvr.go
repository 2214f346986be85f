package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/scd/cmd/scd/console"
	"github.com/mklimuk/scd/pin"
)

var xcvrCmd = cli.Command{
	Name: "xcvr",
	Subcommands: []*cli.Command{
		&xcvrStatusCmd,
		&xcvrSetCmd,
	},
}

var xcvrStatusCmd = cli.Command{
	Name:      "status",
	Usage:     "show transceiver cage lines",
	ArgsUsage: "[name]",
	Action: func(c *cli.Context) error {
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		cages := dev.Xcvrs()
		if c.NArg() == 1 {
			x := dev.Xcvr(c.Args().Get(0))
			if x == nil {
				return console.Exit(1, "no transceiver %q", c.Args().Get(0))
			}
			cages = []*pin.Xcvr{x}
		}
		for _, x := range cages {
			console.PInfof(console.PictoPlug, "%s", console.Bold(x.Name()))
			for _, line := range x.Lines() {
				v, err := x.Get(line)
				if err != nil {
					return console.Exit(1, "read failed: %s", console.Red(err))
				}
				console.Infof("%-16s %s", line, onOff(v))
			}
		}
		return nil
	},
}

var xcvrSetCmd = cli.Command{
	Name:      "set",
	Usage:     "drive a transceiver control line",
	ArgsUsage: "<name> <line> <0|1>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return console.Exit(1, "expected 3 arguments, got %d", c.NArg())
		}
		value, err := parseOnOff(c.Args().Get(2))
		if err != nil {
			return err
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		x := dev.Xcvr(c.Args().Get(0))
		if x == nil {
			return console.Exit(1, "no transceiver %q", c.Args().Get(0))
		}
		if err := x.Set(c.Args().Get(1), value); err != nil {
			return console.Exit(1, "set failed: %s", console.Red(err))
		}
		return nil
	},
}
