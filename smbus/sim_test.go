package smbus

import (
	"sync"

	"github.com/mklimuk/scd/regmap"
)

// busSim emulates one SMBus master register triple well enough to exercise
// the transaction engine: it decodes request phases, keeps per-target
// register content, and pushes one response per phase the way the hardware
// fifo does.
type busSim struct {
	mu      sync.Mutex
	base    uint32
	ver     uint8
	brb     bool
	targets map[simKey]map[uint8][]byte

	fifo    []uint32
	cur     *simTxn
	inReset bool

	txns    int
	resets  int
	open    int
	maxOpen int
	reqs    []regmap.SMBusRequest

	failNext int
	failSet  func(*regmap.SMBusResponse)
}

type simKey struct {
	bus  uint8
	addr uint8
}

type simTxn struct {
	bus     uint8
	addr    uint8
	command uint8
	phase   int
	corrupt bool

	stream   []byte
	pos      int
	writeBuf []byte
}

func newBusSim(base uint32, ver uint8) *busSim {
	return &busSim{
		base:    base,
		ver:     ver,
		targets: make(map[simKey]map[uint8][]byte),
		failSet: func(r *regmap.SMBusResponse) { r.AckError = true },
	}
}

// seed installs the raw byte stream a target returns for one register.
func (s *busSim) seed(bus, addr, reg uint8, stream []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target(bus, addr)[reg] = append([]byte(nil), stream...)
}

func (s *busSim) stored(bus, addr, reg uint8) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.target(bus, addr)[reg]...)
}

func (s *busSim) target(bus, addr uint8) map[uint8][]byte {
	k := simKey{bus, addr}
	if s.targets[k] == nil {
		s.targets[k] = make(map[uint8][]byte)
	}
	return s.targets[k]
}

func (s *busSim) stats() (txns, resets, maxOpen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txns, s.resets, s.maxOpen
}

// failTransactions corrupts the first response of the next n transactions.
func (s *busSim) failTransactions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *busSim) ReadRegister(offset uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch offset - s.base {
	case controlStatusOffset:
		return regmap.SMBusCtrlStatus{FS: uint16(len(s.fifo)), Ver: s.ver, BRB: s.brb}.Encode()
	case responseOffset:
		if len(s.fifo) == 0 {
			return 0
		}
		v := s.fifo[0]
		s.fifo = s.fifo[1:]
		return v
	}
	return ^uint32(0)
}

func (s *busSim) WriteRegister(offset uint32, value uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch offset - s.base {
	case requestOffset:
		s.handle(regmap.DecodeSMBusRequest(value))
	case controlStatusOffset:
		cs := regmap.DecodeSMBusCtrlStatus(value)
		if cs.Reset && !s.inReset {
			s.resets++
			s.fifo = nil
			s.endTxn()
		}
		s.inReset = cs.Reset
	}
}

func (s *busSim) requests() []regmap.SMBusRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]regmap.SMBusRequest(nil), s.reqs...)
}

func (s *busSim) handle(req regmap.SMBusRequest) {
	s.reqs = append(s.reqs, req)
	if req.ST && req.SS > 0 {
		s.endTxn()
		s.cur = &simTxn{bus: req.BS, addr: req.D >> 1}
		s.txns++
		s.open++
		if s.open > s.maxOpen {
			s.maxOpen = s.open
		}
		if s.failNext > 0 {
			s.failNext--
			s.cur.corrupt = true
		}
	}
	c := s.cur
	if c == nil {
		return
	}
	if c.phase == 1 {
		c.command = req.D
	}

	rsp := regmap.SMBusResponse{TI: req.TI}
	if !req.DOD && !req.ST {
		if c.stream == nil {
			c.stream = append([]byte(nil), s.target(c.bus, c.addr)[c.command]...)
		}
		rsp.D = 0xff
		if c.pos < len(c.stream) {
			rsp.D = c.stream[c.pos]
			c.pos++
		}
	}
	if req.DOD && !req.ST && c.phase >= 2 {
		c.writeBuf = append(c.writeBuf, req.D)
	}
	if c.corrupt && c.phase == 0 {
		s.failSet(&rsp)
	}
	s.fifo = append(s.fifo, rsp.Encode())

	if req.BR {
		// assist takes over: the count byte and the payload land in the
		// fifo without further request phases
		stream := s.target(c.bus, c.addr)[c.command]
		ti := req.TI + 1
		var count uint8
		if len(stream) > 0 {
			count = stream[0]
		}
		s.fifo = append(s.fifo, regmap.SMBusResponse{TI: ti, D: count}.Encode())
		for i := 0; i < int(count); i++ {
			ti++
			d := uint8(0xff)
			if 1+i < len(stream) {
				d = stream[1+i]
			}
			s.fifo = append(s.fifo, regmap.SMBusResponse{TI: ti, D: d}.Encode())
		}
		s.endTxn()
		return
	}

	c.phase++
	if req.SP {
		if len(c.writeBuf) > 0 {
			s.target(c.bus, c.addr)[c.command] = c.writeBuf
		}
		s.endTxn()
	}
}

func (s *busSim) endTxn() {
	if s.cur != nil {
		s.open--
		s.cur = nil
	}
}
