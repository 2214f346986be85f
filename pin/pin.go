// Package pin models the controller's direct register-backed objects:
// gpio bits, reset lines, leds, transceiver line groups and fan groups.
package pin

import (
	"fmt"

	"github.com/mklimuk/scd"
)

// GPIO is a single named bit of a gpio register. The logical value seen by
// callers has the active-low inversion already applied.
type GPIO struct {
	io        scd.RegisterIO
	name      string
	addr      uint32
	bit       uint
	readOnly  bool
	activeLow bool
}

func NewGPIO(io scd.RegisterIO, name string, addr uint32, bit uint, readOnly, activeLow bool) *GPIO {
	return &GPIO{io: io, name: name, addr: addr, bit: bit, readOnly: readOnly, activeLow: activeLow}
}

func (g *GPIO) Name() string    { return g.name }
func (g *GPIO) Addr() uint32    { return g.addr }
func (g *GPIO) ReadOnly() bool  { return g.readOnly }
func (g *GPIO) ActiveLow() bool { return g.activeLow }

func (g *GPIO) Get() bool {
	reg := g.io.ReadRegister(g.addr)
	set := reg&(1<<g.bit) != 0
	if g.activeLow {
		return !set
	}
	return set
}

// Set drives the logical value, leaving the register's other bits alone.
func (g *GPIO) Set(value bool) error {
	if g.readOnly {
		return fmt.Errorf("gpio %s is read-only: %w", g.name, scd.ErrInvalid)
	}
	phys := value
	if g.activeLow {
		phys = !value
	}
	reg := g.io.ReadRegister(g.addr)
	if phys {
		reg |= 1 << g.bit
	} else {
		reg &^= 1 << g.bit
	}
	g.io.WriteRegister(g.addr, reg)
	return nil
}

// Reset line register pair: writing the bit mask at the base asserts the
// line, writing it one word up releases it.
const (
	resetAssertOffset  = 0x00
	resetReleaseOffset = 0x10
)

type Reset struct {
	io   scd.RegisterIO
	name string
	addr uint32
	bit  uint
}

func NewReset(io scd.RegisterIO, name string, addr uint32, bit uint) *Reset {
	return &Reset{io: io, name: name, addr: addr, bit: bit}
}

func (r *Reset) Name() string { return r.name }

func (r *Reset) Asserted() bool {
	return r.io.ReadRegister(r.addr+resetAssertOffset)&(1<<r.bit) != 0
}

func (r *Reset) Set(asserted bool) {
	if asserted {
		r.io.WriteRegister(r.addr+resetAssertOffset, 1<<r.bit)
	} else {
		r.io.WriteRegister(r.addr+resetReleaseOffset, 1<<r.bit)
	}
}

// LED is a color led behind a single register. Brightness levels map to
// fixed hardware color words.
type LED struct {
	io   scd.RegisterIO
	name string
	addr uint32
}

func NewLED(io scd.RegisterIO, name string, addr uint32) *LED {
	return &LED{io: io, name: name, addr: addr}
}

func (l *LED) Name() string { return l.name }

func (l *LED) SetBrightness(value int) {
	l.io.WriteRegister(l.addr, ledColor(value))
}

func ledColor(value int) uint32 {
	switch value {
	case 0:
		return 0x0006ff00
	case 1:
		return 0x1006ff00
	case 2:
		return 0x0806ff00
	case 3:
		return 0x1806ff00
	case 4:
		return 0x1406ff00
	case 5:
		return 0x0C06ff00
	case 6:
		return 0x1C06ff00
	}
	return 0x1806ff00
}
