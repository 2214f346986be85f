package smbus

import (
	"fmt"
	"sync"
)

// Params are the per-target transfer tunings applied to every transaction
// addressed at one target on one bus. Some devices need slower timing or a
// different data strobe width than the controller default.
type Params struct {
	Addr uint16
	T    uint8 // timing class, 0-3
	DatR uint8 // read data width
	DatW uint8 // write data width
	ED   bool  // early data
}

// DefaultParams is what a target gets when nothing was configured for it.
var DefaultParams = Params{T: 1, DatR: 3, DatW: 3}

func (p Params) String() string {
	return fmt.Sprintf("t=%d datr=%d datw=%d ed=%d", p.T, p.DatR, p.DatW, b2i(p.ED))
}

// Bus is one logical bus behind a master. Transactions on sibling buses
// serialize on the shared master lock; buses on different masters run in
// parallel.
type Bus struct {
	master *Master
	id     uint32

	pmu    sync.Mutex
	params []Params
}

func (b *Bus) Master() *Master { return b.master }
func (b *Bus) ID() uint32      { return b.id }

// SetParams installs transfer tunings for one target, replacing an earlier
// entry for the same address.
func (b *Bus) SetParams(p Params) {
	b.pmu.Lock()
	defer b.pmu.Unlock()
	for i := range b.params {
		if b.params[i].Addr == p.Addr {
			b.params[i] = p
			return
		}
	}
	b.params = append(b.params, p)
}

// Params returns the configured tunings in insertion order.
func (b *Bus) Params() []Params {
	b.pmu.Lock()
	defer b.pmu.Unlock()
	return append([]Params(nil), b.params...)
}

func (b *Bus) paramsFor(addr uint16) Params {
	b.pmu.Lock()
	defer b.pmu.Unlock()
	for _, p := range b.params {
		if p.Addr == addr {
			return p
		}
	}
	p := DefaultParams
	p.Addr = addr
	return p
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
