package main

import (
	"context"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/scd/cmd/scd/console"
)

var smbusCmd = cli.Command{
	Name: "smbus",
	Subcommands: []*cli.Command{
		&smbusReadCmd,
		&smbusWriteCmd,
		&smbusScanCmd,
		&smbusTweaksCmd,
	},
}

var smbusReadCmd = cli.Command{
	Name:      "read",
	Usage:     "read a target register",
	ArgsUsage: "<bus> <addr> <reg>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "word", Usage: "read a 16 bit register"},
		&cli.BoolFlag{Name: "block", Usage: "read a block register"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return console.Exit(1, "expected 3 arguments, got %d", c.NArg())
		}
		nr, addr, reg, err := smbusTarget(c)
		if err != nil {
			return err
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		bus := dev.Bus(nr)
		if bus == nil {
			return console.Exit(1, "no bus %d", nr)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		switch {
		case c.Bool("block"):
			buf := make([]byte, 32)
			n, err := bus.ReadBlockData(ctx, addr, reg, buf)
			if err != nil {
				return console.Exit(1, "read failed: %s", console.Red(err))
			}
			console.Printf("% x\n", buf[:n])
		case c.Bool("word"):
			v, err := bus.ReadWordData(ctx, addr, reg)
			if err != nil {
				return console.Exit(1, "read failed: %s", console.Red(err))
			}
			console.Printf("%#04x\n", v)
		default:
			v, err := bus.ReadByteData(ctx, addr, reg)
			if err != nil {
				return console.Exit(1, "read failed: %s", console.Red(err))
			}
			console.Printf("%#02x\n", v)
		}
		return nil
	},
}

var smbusWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "write a target register",
	ArgsUsage: "<bus> <addr> <reg> <value>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "word", Usage: "write a 16 bit register"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 4 {
			return console.Exit(1, "expected 4 arguments, got %d", c.NArg())
		}
		nr, addr, reg, err := smbusTarget(c)
		if err != nil {
			return err
		}
		value, err := strconv.ParseUint(c.Args().Get(3), 0, 16)
		if err != nil {
			return console.Exit(1, "could not parse value: %v", err)
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		bus := dev.Bus(nr)
		if bus == nil {
			return console.Exit(1, "no bus %d", nr)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if c.Bool("word") {
			err = bus.WriteWordData(ctx, addr, reg, uint16(value))
		} else {
			err = bus.WriteByteData(ctx, addr, reg, uint8(value))
		}
		if err != nil {
			return console.Exit(1, "write failed: %s", console.Red(err))
		}
		return nil
	},
}

var smbusScanCmd = cli.Command{
	Name:      "scan",
	Usage:     "probe every target address on a bus",
	ArgsUsage: "<bus>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		nr, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not parse bus number: %v", err)
		}
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		bus := dev.Bus(nr)
		if bus == nil {
			return console.Exit(1, "no bus %d", nr)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		found := 0
		for addr := uint16(0x03); addr <= 0x77; addr++ {
			if _, err := bus.ReadByte(ctx, addr); err != nil {
				continue
			}
			console.PInfof(console.PictoPlug, "target at %#02x", addr)
			found++
		}
		console.Infof("%d targets found", found)
		return nil
	},
}

var smbusTweaksCmd = cli.Command{
	Name:  "tweaks",
	Usage: "dump the per-target transfer tunings",
	Action: func(c *cli.Context) error {
		dev, done, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer done()
		console.Print(dev.DumpBusParams())
		return nil
	},
}

func smbusTarget(c *cli.Context) (int, uint16, uint8, error) {
	nr, err := strconv.Atoi(c.Args().Get(0))
	if err != nil {
		return 0, 0, 0, console.Exit(1, "could not parse bus number: %v", err)
	}
	addr, err := strconv.ParseUint(c.Args().Get(1), 0, 16)
	if err != nil {
		return 0, 0, 0, console.Exit(1, "could not parse address: %v", err)
	}
	reg, err := strconv.ParseUint(c.Args().Get(2), 0, 8)
	if err != nil {
		return 0, 0, 0, console.Exit(1, "could not parse register: %v", err)
	}
	return nr, uint16(addr), uint8(reg), nil
}
