package pin

import (
	"fmt"

	"github.com/mklimuk/scd"
)

// LineConfig describes one status or control line of a transceiver cage.
type LineConfig struct {
	Bit         uint
	ReadOnly    bool
	ActiveLow   bool
	ClearOnRead bool
	Name        string
}

var sfpLines = []LineConfig{
	{0, true, false, false, "rxlos"},
	{1, true, false, false, "txfault"},
	{2, true, true, false, "present"},
	{3, true, false, true, "rxlos_changed"},
	{4, true, false, true, "txfault_changed"},
	{5, true, false, true, "present_changed"},
	{6, false, false, false, "txdisable"},
	{7, false, false, false, "rate_select0"},
	{8, false, false, false, "rate_select1"},
}

var qsfpLines = []LineConfig{
	{0, true, true, false, "interrupt"},
	{2, true, true, false, "present"},
	{3, true, false, true, "interrupt_changed"},
	{5, true, false, true, "present_changed"},
	{6, false, false, false, "lp_mode"},
	{7, false, false, false, "reset"},
	{8, false, true, false, "modsel"},
}

var osfpLines = []LineConfig{
	{0, true, true, false, "interrupt"},
	{2, true, true, false, "present"},
	{3, true, false, true, "interrupt_changed"},
	{5, true, false, true, "present_changed"},
	{6, false, false, false, "lp_mode"},
	{7, false, false, false, "reset"},
	{8, false, true, false, "modsel"},
}

// Xcvr is one transceiver cage: a set of named lines sharing a single
// register. Change-latch lines accumulate events across accesses, so an
// edge observed while reading another line is not lost.
type Xcvr struct {
	io      scd.RegisterIO
	name    string
	addr    uint32
	lines   []LineConfig
	latched map[string]bool
}

func newXcvr(io scd.RegisterIO, prefix string, id uint32, addr uint32, lines []LineConfig) *Xcvr {
	return &Xcvr{
		io:      io,
		name:    fmt.Sprintf("%s%d", prefix, id),
		addr:    addr,
		lines:   lines,
		latched: make(map[string]bool),
	}
}

func NewSFP(io scd.RegisterIO, id uint32, addr uint32) *Xcvr {
	return newXcvr(io, "sfp", id, addr, sfpLines)
}

func NewQSFP(io scd.RegisterIO, id uint32, addr uint32) *Xcvr {
	return newXcvr(io, "qsfp", id, addr, qsfpLines)
}

func NewOSFP(io scd.RegisterIO, id uint32, addr uint32) *Xcvr {
	return newXcvr(io, "osfp", id, addr, osfpLines)
}

func (x *Xcvr) Name() string { return x.name }
func (x *Xcvr) Addr() uint32 { return x.addr }

// Lines returns the line names this cage type exposes.
func (x *Xcvr) Lines() []string {
	names := make([]string, len(x.lines))
	for i, l := range x.lines {
		names[i] = l.Name
	}
	return names
}

func (x *Xcvr) line(name string) (LineConfig, error) {
	for _, l := range x.lines {
		if l.Name == name {
			return l, nil
		}
	}
	return LineConfig{}, fmt.Errorf("%s has no line %q: %w", x.name, name, scd.ErrInvalid)
}

// read samples the register and folds every change-latch bit into its
// accumulator before anyone consumes the raw value.
func (x *Xcvr) read() uint32 {
	reg := x.io.ReadRegister(x.addr)
	for _, l := range x.lines {
		if l.ClearOnRead && reg&(1<<l.Bit) != 0 {
			x.latched[l.Name] = true
		}
	}
	return reg
}

// Get returns the logical value of one line. Reading a change-latch line
// consumes its accumulated events.
func (x *Xcvr) Get(name string) (bool, error) {
	l, err := x.line(name)
	if err != nil {
		return false, err
	}
	reg := x.read()
	res := reg&(1<<l.Bit) != 0
	if l.ActiveLow {
		res = !res
	}
	if l.ClearOnRead {
		res = res || x.latched[name]
		x.latched[name] = false
	}
	return res, nil
}

func (x *Xcvr) Set(name string, value bool) error {
	l, err := x.line(name)
	if err != nil {
		return err
	}
	if l.ReadOnly {
		return fmt.Errorf("%s line %q is read-only: %w", x.name, name, scd.ErrInvalid)
	}
	phys := value
	if l.ActiveLow {
		phys = !value
	}
	reg := x.read()
	if phys {
		reg |= 1 << l.Bit
	} else {
		reg &^= 1 << l.Bit
	}
	x.io.WriteRegister(x.addr, reg)
	return nil
}
