package regmap

import "fmt"

// MDIOOp selects what an MDIO request does. Every logical register access is
// a set-address request followed by a read or write request.
type MDIOOp uint8

const (
	MDIOSet   MDIOOp = 0
	MDIOWrite MDIOOp = 1
	MDIORead  MDIOOp = 2
)

func (o MDIOOp) String() string {
	switch o {
	case MDIOSet:
		return "set"
	case MDIOWrite:
		return "write"
	case MDIORead:
		return "read"
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// MDIO request-low register layout:
//
//	d:16 pa:5 dt:5 op:2 t:1 bs:3
const (
	mdioReqLoD  = 0  // payload: register number for set, value for write
	mdioReqLoPA = 16 // port address, 5 bits
	mdioReqLoDT = 21 // device address, 5 bits
	mdioReqLoOp = 26 // operation, 2 bits
	mdioReqLoT  = 28 // clause 45 flag
	mdioReqLoBS = 29 // logical bus select, 3 bits
)

type MDIORequestLo struct {
	BS       uint8
	Clause45 bool
	Op       MDIOOp
	DT       uint8 // device address
	PA       uint8 // port address
	D        uint16
}

func (r MDIORequestLo) Encode() uint32 {
	var v uint32
	v = put(v, uint32(r.D), mdioReqLoD, 16)
	v = put(v, uint32(r.PA), mdioReqLoPA, 5)
	v = put(v, uint32(r.DT), mdioReqLoDT, 5)
	v = put(v, uint32(r.Op), mdioReqLoOp, 2)
	v = putBit(v, r.Clause45, mdioReqLoT)
	v = put(v, uint32(r.BS), mdioReqLoBS, 3)
	return v
}

func DecodeMDIORequestLo(v uint32) MDIORequestLo {
	return MDIORequestLo{
		D:        uint16(get(v, mdioReqLoD, 16)),
		PA:       uint8(get(v, mdioReqLoPA, 5)),
		DT:       uint8(get(v, mdioReqLoDT, 5)),
		Op:       MDIOOp(get(v, mdioReqLoOp, 2)),
		Clause45: getBit(v, mdioReqLoT),
		BS:       uint8(get(v, mdioReqLoBS, 3)),
	}
}

func (r MDIORequestLo) String() string {
	return fmt.Sprintf("{ .reg=0x%08x, .bs=%d, .t=%d, .op=%s, .dt=%d, .pa=%d, .d=0x%04x }",
		r.Encode(), r.BS, b2i(r.Clause45), r.Op, r.DT, r.PA, r.D)
}

// MDIO request-high register: ri:8, the rolling request id. Writing it
// commits the request assembled in the low register.
const mdioReqHiRI = 0

type MDIORequestHi struct {
	RI uint8
}

func (r MDIORequestHi) Encode() uint32 {
	return put(0, uint32(r.RI), mdioReqHiRI, 8)
}

func DecodeMDIORequestHi(v uint32) MDIORequestHi {
	return MDIORequestHi{RI: uint8(get(v, mdioReqHiRI, 8))}
}

// MDIO control/status register layout, mirroring the SMBus one:
//
//	res_count:10 _:18 sp:2 fe:1 reset:1
const (
	mdioCSResCount = 0  // pending results, 10 bits
	mdioCSSpeed    = 28 // bus speed class, 2 bits
	mdioCSFE       = 30 // completion interrupt latch, write 1 to clear
	mdioCSReset    = 31
)

type MDIOCtrlStatus struct {
	ResCount uint16
	Speed    uint8
	FE       bool
	Reset    bool
}

func (c MDIOCtrlStatus) Encode() uint32 {
	var v uint32
	v = put(v, uint32(c.ResCount), mdioCSResCount, 10)
	v = put(v, uint32(c.Speed), mdioCSSpeed, 2)
	v = putBit(v, c.FE, mdioCSFE)
	v = putBit(v, c.Reset, mdioCSReset)
	return v
}

func DecodeMDIOCtrlStatus(v uint32) MDIOCtrlStatus {
	return MDIOCtrlStatus{
		ResCount: uint16(get(v, mdioCSResCount, 10)),
		Speed:    uint8(get(v, mdioCSSpeed, 2)),
		FE:       getBit(v, mdioCSFE),
		Reset:    getBit(v, mdioCSReset),
	}
}

func (c MDIOCtrlStatus) String() string {
	return fmt.Sprintf("{ .reg=0x%08x, .reset=%d, .fe=%d, .sp=%d, .res_count=%d }",
		c.Encode(), b2i(c.Reset), b2i(c.FE), c.Speed, c.ResCount)
}

// MDIO response register layout:
//
//	d:16 _:14 fe:1 ts:1
const (
	mdioRspD  = 0
	mdioRspFE = 30 // framing error
	mdioRspTS = 31 // transaction started
)

type MDIOResponse struct {
	D  uint16
	FE bool
	TS bool
}

func (r MDIOResponse) Encode() uint32 {
	var v uint32
	v = put(v, uint32(r.D), mdioRspD, 16)
	v = putBit(v, r.FE, mdioRspFE)
	v = putBit(v, r.TS, mdioRspTS)
	return v
}

func DecodeMDIOResponse(v uint32) MDIOResponse {
	return MDIOResponse{
		D:  uint16(get(v, mdioRspD, 16)),
		FE: getBit(v, mdioRspFE),
		TS: getBit(v, mdioRspTS),
	}
}

func (r MDIOResponse) String() string {
	return fmt.Sprintf("{ .reg=0x%08x, .ts=%d, .fe=%d, .d=0x%04x }",
		r.Encode(), b2i(r.TS), b2i(r.FE), r.D)
}
