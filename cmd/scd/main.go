package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/scd/cmd/scd/console"
	"github.com/mklimuk/scd/device"
	"github.com/mklimuk/scd/mmio"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "scd"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "system controller cli"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "resource",
			Aliases: []string{"r"},
			Usage:   "register window resource file",
			Value:   "/sys/bus/pci/devices/0000:00:09.0/resource0",
		},
		&cli.StringFlag{
			Name:    "board",
			Aliases: []string{"b"},
			Usage:   "board profile to apply before running the command",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
			console.Trace = true
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		&smbusCmd,
		&mdioCmd,
		&gpioCmd,
		&resetCmd,
		&ledCmd,
		&xcvrCmd,
		&fanCmd,
	}
	err := app.Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			return exerr.ExitCode()
		}
		console.Errorf("%v", err)
		return 1
	}
	return 0
}

// openDevice maps the register window and applies the board profile when
// one was given. The caller owns the returned cleanup.
func openDevice(c *cli.Context) (*device.Device, func(), error) {
	win, err := mmio.Open(c.String("resource"))
	if err != nil {
		return nil, nil, err
	}
	dev := device.New(win)
	if path := c.String("board"); path != "" {
		profile, err := device.LoadProfile(path)
		if err != nil {
			_ = win.Close()
			return nil, nil, err
		}
		if err := dev.Apply(profile); err != nil {
			_ = win.Close()
			return nil, nil, err
		}
	}
	return dev, func() {
		dev.Close()
		_ = win.Close()
	}, nil
}
