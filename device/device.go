// Package device ties the controller's objects together: a registry of
// masters, pins, leds, transceivers and fan groups built up from
// configuration against one register window.
package device

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/mklimuk/scd"
	"github.com/mklimuk/scd/mdio"
	"github.com/mklimuk/scd/pin"
	"github.com/mklimuk/scd/smbus"
)

// Device owns every object configured on one register window. Objects are
// added during initialization only; once FinishInit is called the registry
// is read-only and transactions flow through the objects themselves.
type Device struct {
	win scd.Window
	log *log.Logger

	smbusOpts []smbus.Option
	mdioOpts  []mdio.Option

	mu          sync.Mutex
	initialized bool

	smbusMasters []*smbusEntry
	busList      []*smbus.Bus // global bus numbering, in master add order
	mdioMasters  []*mdio.Master
	mdioDevices  []*mdio.Device
	gpios        []*pin.GPIO
	resets       []*pin.Reset
	leds         []*pin.LED
	xcvrs        []*pin.Xcvr
	fanGroups    []*pin.FanGroup
}

type smbusEntry struct {
	master *smbus.Master
	baseNr int // global number of the master's first bus
}

type Option func(*Device)

func WithLogger(l *log.Logger) Option {
	return func(d *Device) { d.log = l }
}

// WithSMBusOptions forwards options to every SMBus master the device
// creates.
func WithSMBusOptions(opts ...smbus.Option) Option {
	return func(d *Device) { d.smbusOpts = opts }
}

// WithMDIOOptions forwards options to every MDIO master the device creates.
func WithMDIOOptions(opts ...mdio.Option) Option {
	return func(d *Device) { d.mdioOpts = opts }
}

func New(win scd.Window, opts ...Option) *Device {
	d := &Device{win: win, log: log.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) checkMutable() error {
	if d.initialized {
		return scd.ErrBusy
	}
	return nil
}

func (d *Device) checkAddr(addr uint32) error {
	if addr > d.win.Size() {
		return fmt.Errorf("address %#x outside the %#x byte register window: %w",
			addr, d.win.Size(), scd.ErrInvalid)
	}
	return nil
}

// FinishInit closes the configuration phase. Further adds fail with
// ErrBusy.
func (d *Device) FinishInit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = true
	d.log.Info("device initialized",
		"smbus_masters", len(d.smbusMasters), "mdio_masters", len(d.mdioMasters),
		"gpios", len(d.gpios), "resets", len(d.resets), "leds", len(d.leds),
		"xcvrs", len(d.xcvrs), "fan_groups", len(d.fanGroups))
}

func (d *Device) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// AddSMBusMaster creates an SMBus master at addr with busCount logical
// buses. The new buses extend the device's global bus numbering.
func (d *Device) AddSMBusMaster(addr uint32, id uint32, busCount int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutable(); err != nil {
		return err
	}
	if err := d.checkAddr(addr); err != nil {
		return err
	}
	for _, e := range d.smbusMasters {
		if e.master.ID() == id {
			return fmt.Errorf("smbus master %d: %w", id, scd.ErrExists)
		}
	}
	opts := append([]smbus.Option{smbus.WithLogger(d.log)}, d.smbusOpts...)
	m := smbus.NewMaster(d.win, id, addr, busCount, opts...)
	d.smbusMasters = append(d.smbusMasters, &smbusEntry{master: m, baseNr: len(d.busList)})
	d.busList = append(d.busList, m.Buses()...)
	return nil
}

// AddMDIOMaster creates an MDIO master at addr with busCount logical buses
// at the given speed class.
func (d *Device) AddMDIOMaster(addr uint32, id uint32, busCount int, speed uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutable(); err != nil {
		return err
	}
	if err := d.checkAddr(addr); err != nil {
		return err
	}
	for _, m := range d.mdioMasters {
		if m.ID() == id {
			return fmt.Errorf("mdio master %d: %w", id, scd.ErrExists)
		}
	}
	opts := append([]mdio.Option{mdio.WithLogger(d.log)}, d.mdioOpts...)
	d.mdioMasters = append(d.mdioMasters, mdio.NewMaster(d.win, id, addr, busCount, speed, opts...))
	return nil
}

// AddMDIODevice binds a phy on an existing master's bus.
func (d *Device) AddMDIODevice(master, bus, id uint16, prtad, devad uint8, clause45 bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutable(); err != nil {
		return err
	}
	var m *mdio.Master
	for _, cand := range d.mdioMasters {
		if cand.ID() == uint32(master) {
			m = cand
			break
		}
	}
	if m == nil {
		return fmt.Errorf("no mdio master %d: %w", master, scd.ErrInvalid)
	}
	b := m.Bus(int(bus))
	if b == nil {
		return fmt.Errorf("no bus %d on mdio master %d: %w", bus, master, scd.ErrInvalid)
	}
	for _, dev := range d.mdioDevices {
		if dev.Bus() == b && dev.ID() == id {
			return fmt.Errorf("mdio device %d on %d/%d: %w", id, master, bus, scd.ErrExists)
		}
	}
	d.mdioDevices = append(d.mdioDevices, b.NewDevice(id, prtad, devad, clause45))
	return nil
}

func (d *Device) AddGPIO(addr uint32, name string, bit uint, readOnly, activeLow bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutable(); err != nil {
		return err
	}
	if err := d.checkAddr(addr); err != nil {
		return err
	}
	d.gpios = append(d.gpios, pin.NewGPIO(d.win, name, addr, bit, readOnly, activeLow))
	return nil
}

func (d *Device) AddReset(addr uint32, name string, bit uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutable(); err != nil {
		return err
	}
	if err := d.checkAddr(addr); err != nil {
		return err
	}
	d.resets = append(d.resets, pin.NewReset(d.win, name, addr, bit))
	return nil
}

func (d *Device) AddLED(addr uint32, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutable(); err != nil {
		return err
	}
	if err := d.checkAddr(addr); err != nil {
		return err
	}
	for _, l := range d.leds {
		if l.Name() == name {
			return fmt.Errorf("led %s: %w", name, scd.ErrExists)
		}
	}
	d.leds = append(d.leds, pin.NewLED(d.win, name, addr))
	return nil
}

func (d *Device) addXcvr(addr uint32, build func() *pin.Xcvr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutable(); err != nil {
		return err
	}
	if err := d.checkAddr(addr); err != nil {
		return err
	}
	x := build()
	for _, prev := range d.xcvrs {
		if prev.Name() == x.Name() {
			return fmt.Errorf("xcvr %s: %w", x.Name(), scd.ErrExists)
		}
	}
	d.xcvrs = append(d.xcvrs, x)
	return nil
}

func (d *Device) AddSFP(addr uint32, id uint32) error {
	return d.addXcvr(addr, func() *pin.Xcvr { return pin.NewSFP(d.win, id, addr) })
}

func (d *Device) AddQSFP(addr uint32, id uint32) error {
	return d.addXcvr(addr, func() *pin.Xcvr { return pin.NewQSFP(d.win, id, addr) })
}

func (d *Device) AddOSFP(addr uint32, id uint32) error {
	return d.addXcvr(addr, func() *pin.Xcvr { return pin.NewOSFP(d.win, id, addr) })
}

func (d *Device) AddFanGroup(addr uint32, platformID uint32, fanCount int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkMutable(); err != nil {
		return err
	}
	if err := d.checkAddr(addr); err != nil {
		return err
	}
	g, err := pin.NewFanGroup(d.win, addr, platformID, fanCount)
	if err != nil {
		return err
	}
	d.fanGroups = append(d.fanGroups, g)
	return nil
}

// SetBusParams installs a per-target transfer tuning on the logical SMBus
// with the given global number.
func (d *Device) SetBusParams(nr int, p smbus.Params) error {
	bus := d.Bus(nr)
	if bus == nil {
		return fmt.Errorf("no bus %d: %w", nr, scd.ErrInvalid)
	}
	bus.SetParams(p)
	return nil
}

// RemoveAllSMBus quiesces and drops every SMBus master and its buses.
func (d *Device) RemoveAllSMBus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeAllSMBusLocked()
}

func (d *Device) removeAllSMBusLocked() {
	for _, e := range d.smbusMasters {
		e.master.Close()
	}
	d.smbusMasters = nil
	d.busList = nil
}

// RemoveAllMDIO quiesces and drops every MDIO master, its buses and its
// phy bindings.
func (d *Device) RemoveAllMDIO() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeAllMDIOLocked()
}

func (d *Device) removeAllMDIOLocked() {
	for _, m := range d.mdioMasters {
		m.Close()
	}
	d.mdioMasters = nil
	d.mdioDevices = nil
}

// Bus returns the logical SMBus with the given global number.
func (d *Device) Bus(nr int) *smbus.Bus {
	d.mu.Lock()
	defer d.mu.Unlock()
	if nr < 0 || nr >= len(d.busList) {
		return nil
	}
	return d.busList[nr]
}

func (d *Device) SMBusMasters() []*smbus.Master {
	d.mu.Lock()
	defer d.mu.Unlock()
	ms := make([]*smbus.Master, len(d.smbusMasters))
	for i, e := range d.smbusMasters {
		ms[i] = e.master
	}
	return ms
}

func (d *Device) MDIOMasters() []*mdio.Master {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*mdio.Master(nil), d.mdioMasters...)
}

// MDIODevice looks up a configured phy binding.
func (d *Device) MDIODevice(master, bus, id uint16) *mdio.Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, dev := range d.mdioDevices {
		if dev.ID() == id && dev.Bus().ID() == uint32(bus) && dev.Bus().Master().ID() == uint32(master) {
			return dev
		}
	}
	return nil
}

func (d *Device) GPIO(name string) *pin.GPIO {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.gpios {
		if g.Name() == name {
			return g
		}
	}
	return nil
}

func (d *Device) Reset(name string) *pin.Reset {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.resets {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

func (d *Device) LED(name string) *pin.LED {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.leds {
		if l.Name() == name {
			return l
		}
	}
	return nil
}

func (d *Device) Xcvr(name string) *pin.Xcvr {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, x := range d.xcvrs {
		if x.Name() == name {
			return x
		}
	}
	return nil
}

func (d *Device) GPIOs() []*pin.GPIO {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*pin.GPIO(nil), d.gpios...)
}

func (d *Device) Resets() []*pin.Reset {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*pin.Reset(nil), d.resets...)
}

func (d *Device) LEDs() []*pin.LED {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*pin.LED(nil), d.leds...)
}

func (d *Device) Xcvrs() []*pin.Xcvr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*pin.Xcvr(nil), d.xcvrs...)
}

func (d *Device) FanGroups() []*pin.FanGroup {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*pin.FanGroup(nil), d.fanGroups...)
}

// Close quiesces the masters and drops every registered object. Buses go
// first so nothing is mid-transaction when the masters reset.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeAllSMBusLocked()
	d.removeAllMDIOLocked()
	d.gpios = nil
	d.resets = nil
	d.leds = nil
	d.xcvrs = nil
	d.fanGroups = nil
	d.initialized = false
	d.log.Info("device closed")
}
