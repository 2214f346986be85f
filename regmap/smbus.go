package regmap

import "fmt"

// SMBus request register layout, LSB first:
//
//	d:8 ss:6 ed:1 br:1 dat:2 t:2 sp:1 da:1 dod:1 st:1 bs:4 ti:4
const (
	smbusReqD   = 0  // data byte, 8 bits
	smbusReqSS  = 8  // total phase count, 6 bits
	smbusReqED  = 14 // early data
	smbusReqBR  = 15 // hardware block read
	smbusReqDAT = 16 // data width, 2 bits
	smbusReqT   = 18 // timing class, 2 bits
	smbusReqSP  = 20 // stop marker
	smbusReqDA  = 21 // direction disable
	smbusReqDOD = 22 // data output drive
	smbusReqST  = 23 // start marker
	smbusReqBS  = 24 // bus select, 4 bits
	smbusReqTI  = 28 // transaction id, 4 bits
)

// SMBusRequest is one phase of an SMBus transaction as written to the
// master's request register.
type SMBusRequest struct {
	TI  uint8 // rolling transaction id
	BS  uint8 // logical bus select
	ST  bool  // start marker
	DOD bool  // host drives the data byte
	DA  bool  // direction disable, derived as !(dod || sp)
	SP  bool  // stop marker
	T   uint8 // timing class
	DAT uint8 // data width
	BR  bool  // hardware-assisted block read
	ED  bool  // early data
	SS  uint8 // total phase count, set on the start phase
	D   uint8 // data byte
}

func (r SMBusRequest) Encode() uint32 {
	var v uint32
	v = put(v, uint32(r.D), smbusReqD, 8)
	v = put(v, uint32(r.SS), smbusReqSS, 6)
	v = putBit(v, r.ED, smbusReqED)
	v = putBit(v, r.BR, smbusReqBR)
	v = put(v, uint32(r.DAT), smbusReqDAT, 2)
	v = put(v, uint32(r.T), smbusReqT, 2)
	v = putBit(v, r.SP, smbusReqSP)
	v = putBit(v, r.DA, smbusReqDA)
	v = putBit(v, r.DOD, smbusReqDOD)
	v = putBit(v, r.ST, smbusReqST)
	v = put(v, uint32(r.BS), smbusReqBS, 4)
	v = put(v, uint32(r.TI), smbusReqTI, 4)
	return v
}

func DecodeSMBusRequest(v uint32) SMBusRequest {
	return SMBusRequest{
		D:   uint8(get(v, smbusReqD, 8)),
		SS:  uint8(get(v, smbusReqSS, 6)),
		ED:  getBit(v, smbusReqED),
		BR:  getBit(v, smbusReqBR),
		DAT: uint8(get(v, smbusReqDAT, 2)),
		T:   uint8(get(v, smbusReqT, 2)),
		SP:  getBit(v, smbusReqSP),
		DA:  getBit(v, smbusReqDA),
		DOD: getBit(v, smbusReqDOD),
		ST:  getBit(v, smbusReqST),
		BS:  uint8(get(v, smbusReqBS, 4)),
		TI:  uint8(get(v, smbusReqTI, 4)),
	}
}

func (r SMBusRequest) String() string {
	return fmt.Sprintf("{ .reg=0x%08x, .ti=%02d, .bs=%#x, .st=%d, .dod=%d, .da=%d, .sp=%d, .t=%d, .dat=%#x, .br=%d, .ed=%d, .ss=%02d, .d=0x%02x }",
		r.Encode(), r.TI, r.BS, b2i(r.ST), b2i(r.DOD), b2i(r.DA), b2i(r.SP), r.T, r.DAT, b2i(r.BR), b2i(r.ED), r.SS, r.D)
}

// SMBus control/status register layout:
//
//	fs:10 _:3 foe:1 _:12 brb:1 _:1 ver:2 fe:1 reset:1
const (
	smbusCSFS    = 0  // response fifo size, 10 bits
	smbusCSFOE   = 13 // fifo overflow
	smbusCSBRB   = 26 // block-read busy
	smbusCSVer   = 28 // controller version, 2 bits
	smbusCSFE    = 30 // fifo empty interrupt
	smbusCSReset = 31 // master reset
)

// SMBusCtrlStatus is the SMBus master control/status register.
type SMBusCtrlStatus struct {
	FS    uint16 // response fifo fill level
	FOE   bool   // fifo overflow, write 1 to clear
	BRB   bool   // hardware block read in progress
	Ver   uint8  // controller version, >=2 means block read assist
	FE    bool
	Reset bool
}

func (c SMBusCtrlStatus) Encode() uint32 {
	var v uint32
	v = put(v, uint32(c.FS), smbusCSFS, 10)
	v = putBit(v, c.FOE, smbusCSFOE)
	v = putBit(v, c.BRB, smbusCSBRB)
	v = put(v, uint32(c.Ver), smbusCSVer, 2)
	v = putBit(v, c.FE, smbusCSFE)
	v = putBit(v, c.Reset, smbusCSReset)
	return v
}

func DecodeSMBusCtrlStatus(v uint32) SMBusCtrlStatus {
	return SMBusCtrlStatus{
		FS:    uint16(get(v, smbusCSFS, 10)),
		FOE:   getBit(v, smbusCSFOE),
		BRB:   getBit(v, smbusCSBRB),
		Ver:   uint8(get(v, smbusCSVer, 2)),
		FE:    getBit(v, smbusCSFE),
		Reset: getBit(v, smbusCSReset),
	}
}

func (c SMBusCtrlStatus) String() string {
	return fmt.Sprintf("{ .reg=0x%08x, .reset=%d, .fe=%d, .ver=%d, .brb=%d, .foe=%d, .fs=%d }",
		c.Encode(), b2i(c.Reset), b2i(c.FE), c.Ver, b2i(c.BRB), b2i(c.FOE), c.FS)
}

// SMBus response register layout:
//
//	d:8 conflict:1 timeout:1 ack:1 flushed:1 ti:4 ss:6 _:8 foe:1 fe:1
const (
	smbusRspD        = 0
	smbusRspConflict = 8
	smbusRspTimeout  = 9
	smbusRspAck      = 10
	smbusRspFlushed  = 11
	smbusRspTI       = 12
	smbusRspSS       = 16
	smbusRspFOE      = 30
	smbusRspFE       = 31
)

// SMBusResponse is one decoded entry of the master's response fifo.
type SMBusResponse struct {
	D                uint8
	BusConflictError bool
	TimeoutError     bool
	AckError         bool
	Flushed          bool
	TI               uint8
	SS               uint8
	FOE              bool
	FE               bool
}

func (r SMBusResponse) Encode() uint32 {
	var v uint32
	v = put(v, uint32(r.D), smbusRspD, 8)
	v = putBit(v, r.BusConflictError, smbusRspConflict)
	v = putBit(v, r.TimeoutError, smbusRspTimeout)
	v = putBit(v, r.AckError, smbusRspAck)
	v = putBit(v, r.Flushed, smbusRspFlushed)
	v = put(v, uint32(r.TI), smbusRspTI, 4)
	v = put(v, uint32(r.SS), smbusRspSS, 6)
	v = putBit(v, r.FOE, smbusRspFOE)
	v = putBit(v, r.FE, smbusRspFE)
	return v
}

func DecodeSMBusResponse(v uint32) SMBusResponse {
	return SMBusResponse{
		D:                uint8(get(v, smbusRspD, 8)),
		BusConflictError: getBit(v, smbusRspConflict),
		TimeoutError:     getBit(v, smbusRspTimeout),
		AckError:         getBit(v, smbusRspAck),
		Flushed:          getBit(v, smbusRspFlushed),
		TI:               uint8(get(v, smbusRspTI, 4)),
		SS:               uint8(get(v, smbusRspSS, 6)),
		FOE:              getBit(v, smbusRspFOE),
		FE:               getBit(v, smbusRspFE),
	}
}

func (r SMBusResponse) String() string {
	return fmt.Sprintf("{ .reg=0x%08x, .fe=%d, .foe=%d, .ss=%02d, .ti=%02d, .flushed=%d, .ack_error=%d, .timeout_error=%d, .bus_conflict_error=%d, .d=0x%02x }",
		r.Encode(), b2i(r.FE), b2i(r.FOE), r.SS, r.TI, b2i(r.Flushed), b2i(r.AckError), b2i(r.TimeoutError), b2i(r.BusConflictError), r.D)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
