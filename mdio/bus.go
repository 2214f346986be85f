package mdio

import (
	"context"
	"fmt"

	"github.com/mklimuk/scd/regmap"
)

// Bus is one logical bus behind a master. Logical accesses on sibling buses
// serialize on the shared master lock.
type Bus struct {
	master *Master
	id     uint32
}

func (b *Bus) Master() *Master { return b.master }
func (b *Bus) ID() uint32      { return b.id }

// Read performs one register read on the target phy.
func (b *Bus) Read(ctx context.Context, clause45 bool, prtad, devad uint8, reg uint16) (uint16, error) {
	return b.access(ctx, clause45, prtad, devad, reg, regmap.MDIORead, 0)
}

// Write performs one register write on the target phy.
func (b *Bus) Write(ctx context.Context, clause45 bool, prtad, devad uint8, reg uint16, value uint16) error {
	_, err := b.access(ctx, clause45, prtad, devad, reg, regmap.MDIOWrite, value)
	return err
}

// access runs the set-address request and the operation request under one
// held master lock. Each physical request is awaited and validated on its
// own before the next one goes out, so the hardware never has more than one
// result pending; only the operation's response carries the data.
func (b *Bus) access(ctx context.Context, clause45 bool, prtad, devad uint8, reg uint16, op regmap.MDIOOp, value uint16) (uint16, error) {
	m := b.master
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	lo := regmap.MDIORequestLo{
		BS:       uint8(b.id),
		Clause45: clause45,
		Op:       regmap.MDIOSet,
		DT:       devad,
		PA:       prtad,
		D:        reg,
	}
	if _, err := m.request(lo); err != nil {
		m.log.Warn("mdio set address failed", "bus", b.id, "prtad", prtad, "devad", devad,
			"reg", fmt.Sprintf("%#04x", reg), "err", err)
		return 0, err
	}
	lo.Op = op
	lo.D = value
	rsp, err := m.request(lo)
	if err != nil {
		m.log.Warn("mdio access failed", "bus", b.id, "op", op, "prtad", prtad, "devad", devad,
			"reg", fmt.Sprintf("%#04x", reg), "err", err)
		return 0, err
	}
	return rsp.D, nil
}

// Device binds a bus to one phy so callers address it by register alone.
type Device struct {
	bus      *Bus
	id       uint16
	prtad    uint8
	devad    uint8
	clause45 bool
}

func (b *Bus) NewDevice(id uint16, prtad, devad uint8, clause45 bool) *Device {
	return &Device{bus: b, id: id, prtad: prtad, devad: devad, clause45: clause45}
}

func (d *Device) ID() uint16     { return d.id }
func (d *Device) Bus() *Bus      { return d.bus }
func (d *Device) Prtad() uint8   { return d.prtad }
func (d *Device) Devad() uint8   { return d.devad }
func (d *Device) Clause45() bool { return d.clause45 }

func (d *Device) Read(ctx context.Context, reg uint16) (uint16, error) {
	return d.bus.Read(ctx, d.clause45, d.prtad, d.devad, reg)
}

func (d *Device) Write(ctx context.Context, reg uint16, value uint16) error {
	return d.bus.Write(ctx, d.clause45, d.prtad, d.devad, reg, value)
}
