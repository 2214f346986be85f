// Package mdio drives the controller's MDIO masters. A logical register
// access is two physical requests issued back to back, a set-address and a
// read or write, with completion signalled through a result counter in the
// control/status register.
package mdio

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jpillora/backoff"

	"github.com/mklimuk/scd"
	"github.com/mklimuk/scd/regmap"
)

// Register offsets from the master's base address.
const (
	requestLoOffset     = 0x00
	requestHiOffset     = 0x10
	controlStatusOffset = 0x20
	responseOffset      = 0x30
)

const (
	waitBudget = 100 * time.Millisecond
	waitMin    = 10 * time.Microsecond
	waitMax    = 5 * time.Millisecond
	resetHold  = 10 * time.Millisecond
)

// Master is one MDIO controller instance. The request id rolls across all
// requests the master ever issued, so responses can be matched to their
// transaction.
type Master struct {
	io    scd.RegisterIO
	id    uint32
	reqLo uint32
	reqHi uint32
	cs    uint32
	rsp   uint32
	speed uint8

	mu    sync.Mutex
	reqID uint8
	buses []*Bus

	sleep func(time.Duration)
	now   func() time.Time
	log   *log.Logger
}

type Option func(*Master)

// WithClock replaces the delay and time primitives of the completion wait,
// so tests can run on a fake clock.
func WithClock(sleep func(time.Duration), now func() time.Time) Option {
	return func(m *Master) {
		m.sleep = sleep
		m.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(m *Master) { m.log = l }
}

// NewMaster creates a master at the given base address with busCount logical
// buses running at the given speed class, and resets the hardware.
func NewMaster(io scd.RegisterIO, id uint32, base uint32, busCount int, speed uint8, opts ...Option) *Master {
	m := &Master{
		io:    io,
		id:    id,
		reqLo: base + requestLoOffset,
		reqHi: base + requestHiOffset,
		cs:    base + controlStatusOffset,
		rsp:   base + responseOffset,
		speed: speed,
		sleep: time.Sleep,
		now:   time.Now,
		log:   log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("mdio", id)
	for i := 0; i < busCount; i++ {
		m.buses = append(m.buses, &Bus{master: m, id: uint32(i)})
	}
	m.Reset()
	m.log.Debug("mdio master ready", "base", base, "speed", speed, "buses", busCount)
	return m
}

func (m *Master) ID() uint32 { return m.id }

// Bus returns the logical bus with the given id, nil when out of range.
func (m *Master) Bus(id int) *Bus {
	if id < 0 || id >= len(m.buses) {
		return nil
	}
	return m.buses[id]
}

func (m *Master) Buses() []*Bus {
	return append([]*Bus(nil), m.buses...)
}

// Reset pulses the master reset bit and restores the speed class.
func (m *Master) Reset() {
	m.io.WriteRegister(m.cs, regmap.MDIOCtrlStatus{Reset: true, Speed: m.speed}.Encode())
	m.sleep(resetHold)
	m.io.WriteRegister(m.cs, regmap.MDIOCtrlStatus{Speed: m.speed}.Encode())
}

func (m *Master) Close() {
	m.Reset()
}

// clearInterrupt acknowledges the completion latch. It is written before
// waiting, so the wait observes only results of the requests just issued,
// and after, so the latch is clean for the next caller.
func (m *Master) clearInterrupt() {
	m.io.WriteRegister(m.cs, regmap.MDIOCtrlStatus{FE: true, Speed: m.speed}.Encode())
}

func (m *Master) issue(lo regmap.MDIORequestLo) {
	m.log.Debug("wr req", "req", lo, "ri", m.reqID)
	m.io.WriteRegister(m.reqLo, lo.Encode())
	m.io.WriteRegister(m.reqHi, regmap.MDIORequestHi{RI: m.reqID}.Encode())
	m.reqID++
}

// request runs one full physical request cycle: clear the completion latch,
// write the register pair, wait for the single pending result, clear the
// latch again and validate the response. The set-address request goes
// through the same cycle as the operation itself; its result carries no
// payload but still acknowledges the request.
func (m *Master) request(lo regmap.MDIORequestLo) (regmap.MDIOResponse, error) {
	m.clearInterrupt()
	m.issue(lo)
	rsp, err := m.waitResult()
	if err != nil {
		return regmap.MDIOResponse{}, err
	}
	m.clearInterrupt()
	if !rsp.TS || rsp.FE {
		return regmap.MDIOResponse{}, fmt.Errorf("bad response %s: %w", rsp, scd.ErrIO)
	}
	return rsp, nil
}

// waitResult polls the result counter until exactly one result is pending.
// More than one result means the hardware and the driver disagree about
// what was issued, which no retry can fix.
func (m *Master) waitResult() (regmap.MDIOResponse, error) {
	b := &backoff.Backoff{Min: waitMin, Max: waitMax, Factor: 2}
	deadline := m.now().Add(waitBudget)
	for {
		cs := regmap.DecodeMDIOCtrlStatus(m.io.ReadRegister(m.cs))
		switch {
		case cs.ResCount == 1:
			rsp := regmap.DecodeMDIOResponse(m.io.ReadRegister(m.rsp))
			m.log.Debug("rd rsp", "rsp", rsp)
			return rsp, nil
		case cs.ResCount != 0:
			return regmap.MDIOResponse{}, fmt.Errorf("%d pending results on master %d: %w",
				cs.ResCount, m.id, scd.ErrUnsupported)
		}
		if !m.now().Before(deadline) {
			return regmap.MDIOResponse{}, fmt.Errorf("no result from master %d after %s: %w",
				m.id, waitBudget, scd.ErrTimeout)
		}
		m.sleep(b.Duration())
	}
}
