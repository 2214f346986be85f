package main

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/scd/cmd/scd/console"
	"github.com/mklimuk/scd/pin"
)

var fanCmd = cli.Command{
	Name: "fan",
	Subcommands: []*cli.Command{
		&fanStatusCmd,
		&fanPWMCmd,
	},
}

var fanStatusCmd = cli.Command{
	Name:  "status",
	Usage: "show every fan slot",
	Action: func(c *cli.Context) error {
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		for _, g := range dev.FanGroups() {
			console.PInfof(console.PictoFan, "%s", console.Bold(g.Name()))
			for i := 0; i < g.Fans(); i++ {
				present, err := g.Present(i)
				if err != nil {
					return console.Exit(1, "read failed: %s", console.Red(err))
				}
				if !present {
					console.Infof("fan%d: not present", i+1)
					continue
				}
				fault, err := g.Fault(i)
				if err != nil {
					return console.Exit(1, "read failed: %s", console.Red(err))
				}
				pwm, err := g.PWM(i)
				if err != nil {
					return console.Exit(1, "read failed: %s", console.Red(err))
				}
				airflow, err := g.Airflow(i)
				if err != nil {
					return console.Exit(1, "read failed: %s", console.Red(err))
				}
				led, err := g.LED(i)
				if err != nil {
					return console.Exit(1, "read failed: %s", console.Red(err))
				}
				rpm := "stopped"
				if speed, err := g.Speed(i); err == nil {
					rpm = strconv.FormatUint(uint64(speed), 10) + " rpm"
				}
				state := console.Green("ok")
				if fault {
					state = console.Red("fault")
				}
				console.Infof("fan%d: %s %s pwm=%d airflow=%s led=%s",
					i+1, state, rpm, pwm, airflow, fanLEDName(led))
			}
		}
		return nil
	},
}

var fanPWMCmd = cli.Command{
	Name:      "pwm",
	Usage:     "set a fan slot duty cycle",
	ArgsUsage: "<slot> <value>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		slot, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not parse slot: %v", err)
		}
		value, err := strconv.ParseUint(c.Args().Get(1), 0, 8)
		if err != nil {
			return console.Exit(1, "could not parse value: %v", err)
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		groups := dev.FanGroups()
		if len(groups) == 0 {
			return console.Exit(1, "no fan group configured")
		}
		if err := groups[0].SetPWM(slot-1, uint8(value)); err != nil {
			return console.Exit(1, "set failed: %s", console.Red(err))
		}
		return nil
	},
}

func fanLEDName(v int) string {
	switch v {
	case pin.FanLEDOff:
		return "off"
	case pin.FanLEDGreen:
		return "green"
	case pin.FanLEDRed:
		return "red"
	case pin.FanLEDOrange:
		return "orange"
	}
	return "unknown"
}
