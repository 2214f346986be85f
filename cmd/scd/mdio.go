package main

import (
	"context"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/scd/cmd/scd/console"
	"github.com/mklimuk/scd/device"
	"github.com/mklimuk/scd/mdio"
)

var mdioCmd = cli.Command{
	Name: "mdio",
	Subcommands: []*cli.Command{
		&mdioReadCmd,
		&mdioWriteCmd,
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "clause22", Usage: "use clause 22 framing"},
	},
}

var mdioReadCmd = cli.Command{
	Name:      "read",
	Usage:     "read a phy register",
	ArgsUsage: "<master> <bus> <prtad> <devad> <reg>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 5 {
			return console.Exit(1, "expected 5 arguments, got %d", c.NArg())
		}
		target, err := mdioTarget(c)
		if err != nil {
			return err
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		bus, err := mdioBus(c, dev, target)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		v, err := bus.Read(ctx, !c.Bool("clause22"), target.prtad, target.devad, target.reg)
		if err != nil {
			return console.Exit(1, "read failed: %s", console.Red(err))
		}
		console.Printf("%#04x\n", v)
		return nil
	},
}

var mdioWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "write a phy register",
	ArgsUsage: "<master> <bus> <prtad> <devad> <reg> <value>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 6 {
			return console.Exit(1, "expected 6 arguments, got %d", c.NArg())
		}
		target, err := mdioTarget(c)
		if err != nil {
			return err
		}
		value, err := strconv.ParseUint(c.Args().Get(5), 0, 16)
		if err != nil {
			return console.Exit(1, "could not parse value: %v", err)
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		bus, err := mdioBus(c, dev, target)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bus.Write(ctx, !c.Bool("clause22"), target.prtad, target.devad, target.reg, uint16(value)); err != nil {
			return console.Exit(1, "write failed: %s", console.Red(err))
		}
		return nil
	},
}

type mdioArgs struct {
	master uint32
	bus    int
	prtad  uint8
	devad  uint8
	reg    uint16
}

func mdioTarget(c *cli.Context) (mdioArgs, error) {
	var t mdioArgs
	master, err := strconv.ParseUint(c.Args().Get(0), 0, 32)
	if err != nil {
		return t, console.Exit(1, "could not parse master id: %v", err)
	}
	bus, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return t, console.Exit(1, "could not parse bus number: %v", err)
	}
	prtad, err := strconv.ParseUint(c.Args().Get(2), 0, 5)
	if err != nil {
		return t, console.Exit(1, "could not parse port address: %v", err)
	}
	devad, err := strconv.ParseUint(c.Args().Get(3), 0, 5)
	if err != nil {
		return t, console.Exit(1, "could not parse device address: %v", err)
	}
	reg, err := strconv.ParseUint(c.Args().Get(4), 0, 16)
	if err != nil {
		return t, console.Exit(1, "could not parse register: %v", err)
	}
	t.master = uint32(master)
	t.bus = bus
	t.prtad = uint8(prtad)
	t.devad = uint8(devad)
	t.reg = uint16(reg)
	return t, nil
}

func mdioBus(c *cli.Context, dev *device.Device, target mdioArgs) (*mdio.Bus, error) {
	for _, m := range dev.MDIOMasters() {
		if m.ID() != target.master {
			continue
		}
		bus := m.Bus(target.bus)
		if bus == nil {
			break
		}
		return bus, nil
	}
	return nil, console.Exit(1, "no bus %d on mdio master %d", target.bus, target.master)
}
