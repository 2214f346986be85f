// Package smbus drives the controller's SMBus masters: phase-sequenced
// transactions against a request/control-status/response register triple,
// with completion polling, response validation and reset-then-retry
// recovery.
package smbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mklimuk/scd"
	"github.com/mklimuk/scd/regmap"
)

// Register offsets from the master's base address.
const (
	requestOffset       = 0x10
	controlStatusOffset = 0x20
	responseOffset      = 0x30
)

const (
	DefaultBusCount   = 8
	DefaultMaxRetries = 6
)

const (
	fifoPollRetries  = 20
	fifoPollInterval = 10 * time.Millisecond
	resetHold        = 50 * time.Millisecond
	blockWaitStep    = time.Millisecond
)

// State is the coarse transaction state of a master, for diagnostics.
type State int32

const (
	Idle State = iota
	Issuing
	AwaitingResponse
	Resetting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Issuing:
		return "issuing"
	case AwaitingResponse:
		return "awaiting-response"
	case Resetting:
		return "resetting"
	}
	return "unknown"
}

// Master is one SMBus controller instance. All transactions on its logical
// buses serialize on the master lock: the hardware has a single
// request/response fifo per master.
type Master struct {
	io  scd.RegisterIO
	id  uint32
	req uint32
	cs  uint32
	rsp uint32

	mu          sync.Mutex
	state       atomic.Int32
	maxRetries  int
	brSupported bool
	buses       []*Bus

	sleep func(time.Duration)
	log   *log.Logger
}

type Option func(*Master)

func WithMaxRetries(n int) Option {
	return func(m *Master) { m.maxRetries = n }
}

// WithSleep replaces the delay primitive used by the polling and reset
// loops, so tests can run on a fake clock.
func WithSleep(sleep func(time.Duration)) Option {
	return func(m *Master) { m.sleep = sleep }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Master) { m.log = l }
}

// NewMaster creates a master at the given base address with busCount logical
// buses (ids 0..busCount-1), resets the hardware and probes the controller
// version for block-read support.
func NewMaster(io scd.RegisterIO, id uint32, base uint32, busCount int, opts ...Option) *Master {
	m := &Master{
		io:         io,
		id:         id,
		req:        base + requestOffset,
		cs:         base + controlStatusOffset,
		rsp:        base + responseOffset,
		maxRetries: DefaultMaxRetries,
		sleep:      time.Sleep,
		log:        log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("smbus", id)
	for i := 0; i < busCount; i++ {
		m.buses = append(m.buses, &Bus{master: m, id: uint32(i)})
	}
	m.resetLocked()
	cs := m.readCtrlStatus()
	m.brSupported = cs.Ver >= 2
	m.log.Debug("smbus master ready", "base", base, "version", cs.Ver, "buses", busCount)
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

// BlockReadSupported reports whether the controller can run
// hardware-assisted block reads (version 2 and up).
func (m *Master) BlockReadSupported() bool { return m.brSupported }

func (m *Master) State() State { return State(m.state.Load()) }

func (m *Master) setState(s State) { m.state.Store(int32(s)) }

// Reset drives the master reset and overflow-clear bits, holds, releases
// and holds again, flushing whatever the fifo accumulated.
func (m *Master) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Master) resetLocked() {
	cs := m.readCtrlStatus()
	cs.Reset = true
	cs.FOE = true
	m.writeCtrlStatus(cs)
	m.sleep(resetHold)
	cs.Reset = false
	m.writeCtrlStatus(cs)
	m.sleep(resetHold)
}

// Close resets the hardware one last time. Buses must not be used afterwards.
func (m *Master) Close() {
	m.Reset()
}

func (m *Master) writeRequest(req regmap.SMBusRequest) {
	m.log.Debug("wr req", "req", req)
	m.io.WriteRegister(m.req, req.Encode())
}

func (m *Master) writeCtrlStatus(cs regmap.SMBusCtrlStatus) {
	m.log.Debug("wr cs", "cs", cs)
	m.io.WriteRegister(m.cs, cs.Encode())
}

func (m *Master) readCtrlStatus() regmap.SMBusCtrlStatus {
	cs := regmap.DecodeSMBusCtrlStatus(m.io.ReadRegister(m.cs))
	m.log.Debug("rd cs", "cs", cs)
	return cs
}

// readResponse pops one response fifo entry, first waiting for the fifo to
// fill. An empty fifo after the bounded wait is logged but not fatal here:
// the stale entry it yields fails validation instead.
func (m *Master) readResponse() regmap.SMBusResponse {
	retries := fifoPollRetries
	cs := m.readCtrlStatus()
	for cs.FS == 0 {
		retries--
		if retries == 0 {
			break
		}
		m.sleep(fifoPollInterval)
		cs = m.readCtrlStatus()
	}
	if cs.FS == 0 {
		m.log.Error("fifo still empty after retries")
	}
	rsp := regmap.DecodeSMBusResponse(m.io.ReadRegister(m.rsp))
	m.log.Debug("rd rsp", "rsp", rsp)
	return rsp
}
