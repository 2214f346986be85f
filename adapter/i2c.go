// Package adapter exposes the controller's logical buses through the
// periph.io i2c interfaces, so generic device drivers can sit on top of
// them.
package adapter

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/scd"
)

// Transactor is the transaction surface the adapter drives.
type Transactor interface {
	Transfer(ctx context.Context, addr uint16, dir scd.Dir, command uint8, size scd.Size, data []byte) (int, error)
}

// I2C adapts one logical bus to i2c.Bus. The controller is a command-based
// engine, so a transaction needs the register number in the first written
// byte; raw reads without a preceding write are limited to a single byte.
type I2C struct {
	name string
	bus  Transactor
}

var _ i2c.BusCloser = (*I2C)(nil)

func NewI2C(name string, bus Transactor) *I2C {
	return &I2C{name: name, bus: bus}
}

func (a *I2C) String() string { return a.name }

// SetSpeed is not supported: transfer timing is tuned per target through
// the bus parameter table, not per bus.
func (a *I2C) SetSpeed(f physic.Frequency) error {
	return fmt.Errorf("%s: bus frequency is fixed by the controller: %w", a.name, scd.ErrUnsupported)
}

func (a *I2C) Close() error { return nil }

func (a *I2C) Tx(addr uint16, w, r []byte) error {
	ctx := context.Background()
	switch {
	case len(w) == 0 && len(r) == 1:
		_, err := a.bus.Transfer(ctx, addr, scd.Read, 0, scd.Byte, r)
		return err
	case len(w) == 0 && len(r) > 1:
		return fmt.Errorf("%s: read needs a register byte first: %w", a.name, scd.ErrUnsupported)
	case len(w) > 0 && len(r) == 0:
		_, err := a.bus.Transfer(ctx, addr, scd.Write, w[0], scd.I2CBlockMsg, w[1:])
		return err
	case len(w) == 1 && len(r) > 0:
		_, err := a.bus.Transfer(ctx, addr, scd.Read, w[0], scd.I2CBlockMsg, r)
		return err
	}
	return fmt.Errorf("%s: write-then-read supports a single register byte: %w", a.name, scd.ErrUnsupported)
}
