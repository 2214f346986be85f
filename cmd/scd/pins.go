package main

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/scd/cmd/scd/console"
)

var gpioCmd = cli.Command{
	Name: "gpio",
	Subcommands: []*cli.Command{
		&gpioListCmd,
		&gpioGetCmd,
		&gpioSetCmd,
	},
}

var gpioListCmd = cli.Command{
	Name:  "list",
	Usage: "show every gpio and its current value",
	Action: func(c *cli.Context) error {
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		for _, g := range dev.GPIOs() {
			attrs := ""
			if g.ReadOnly() {
				attrs += " ro"
			}
			if g.ActiveLow() {
				attrs += " active-low"
			}
			console.PInfof(console.PictoPin, "%s = %s%s", g.Name(), onOff(g.Get()), attrs)
		}
		return nil
	},
}

var gpioGetCmd = cli.Command{
	Name:      "get",
	Usage:     "read one gpio",
	ArgsUsage: "<name>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		g := dev.GPIO(c.Args().Get(0))
		if g == nil {
			return console.Exit(1, "no gpio %q", c.Args().Get(0))
		}
		console.Print(onOff(g.Get()))
		return nil
	},
}

var gpioSetCmd = cli.Command{
	Name:      "set",
	Usage:     "drive one gpio",
	ArgsUsage: "<name> <0|1>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		value, err := parseOnOff(c.Args().Get(1))
		if err != nil {
			return err
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		g := dev.GPIO(c.Args().Get(0))
		if g == nil {
			return console.Exit(1, "no gpio %q", c.Args().Get(0))
		}
		if err := g.Set(value); err != nil {
			return console.Exit(1, "set failed: %s", console.Red(err))
		}
		return nil
	},
}

var resetCmd = cli.Command{
	Name: "reset",
	Subcommands: []*cli.Command{
		&resetStatusCmd,
		&resetAssertCmd,
		&resetReleaseCmd,
	},
}

var resetStatusCmd = cli.Command{
	Name:  "status",
	Usage: "show every reset line",
	Action: func(c *cli.Context) error {
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		for _, r := range dev.Resets() {
			state := "released"
			if r.Asserted() {
				state = console.Red("asserted")
			}
			console.PInfof(console.PictoStop, "%s: %s", r.Name(), state)
		}
		return nil
	},
}

var resetAssertCmd = cli.Command{
	Name:      "assert",
	Usage:     "put a component in reset",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		name := c.Args().Get(0)
		if !c.Bool("yes") {
			answer, err := console.YesOrNo("asserting " + name + " will take the component offline, continue?")
			if err != nil {
				return err
			}
			if answer != console.Yes {
				console.Info("aborted")
				return nil
			}
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		r := dev.Reset(name)
		if r == nil {
			return console.Exit(1, "no reset line %q", name)
		}
		r.Set(true)
		return nil
	},
}

var resetReleaseCmd = cli.Command{
	Name:      "release",
	Usage:     "take a component out of reset",
	ArgsUsage: "<name>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		r := dev.Reset(c.Args().Get(0))
		if r == nil {
			return console.Exit(1, "no reset line %q", c.Args().Get(0))
		}
		r.Set(false)
		return nil
	},
}

var ledCmd = cli.Command{
	Name: "led",
	Subcommands: []*cli.Command{
		&ledListCmd,
		&ledSetCmd,
	},
}

var ledListCmd = cli.Command{
	Name:  "list",
	Usage: "show every led",
	Action: func(c *cli.Context) error {
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		for _, l := range dev.LEDs() {
			console.PInfof(console.PictoLight, "%s", l.Name())
		}
		return nil
	},
}

var ledSetCmd = cli.Command{
	Name:      "set",
	Usage:     "set a led brightness level",
	ArgsUsage: "<name> <level>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		level, err := strconv.Atoi(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "could not parse level: %v", err)
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		l := dev.LED(c.Args().Get(0))
		if l == nil {
			return console.Exit(1, "no led %q", c.Args().Get(0))
		}
		l.SetBrightness(level)
		return nil
	},
}

func onOff(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseOnOff(arg string) (bool, error) {
	switch arg {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, console.Exit(1, "expected 0 or 1, got %q", arg)
}
