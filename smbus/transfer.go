package smbus

import (
	"context"
	"fmt"

	"github.com/mklimuk/scd"
	"github.com/mklimuk/scd/regmap"
)

// Transfer runs one SMBus transaction against the target at addr and
// retries on protocol failures, resetting the master between attempts.
// The data buffer follows the shape conventions of scd.Size; on success
// the returned count is the number of payload bytes moved.
func (b *Bus) Transfer(ctx context.Context, addr uint16, dir scd.Dir, command uint8, size scd.Size, data []byte) (int, error) {
	if err := checkCapacity(dir, size, data); err != nil {
		return 0, err
	}
	m := b.master
	m.log.Debug("smbus transfer", "bus", b.id, "dir", dir, "addr", fmt.Sprintf("%#02x", addr),
		"reg", fmt.Sprintf("%#02x", command), "size", size, "capacity", len(data))
	var err error
	for attempt := 0; ; {
		if cerr := ctx.Err(); cerr != nil {
			return 0, cerr
		}
		err = b.transfer(addr, dir, command, size, data)
		if !scd.Retryable(err) {
			break
		}
		attempt++
		if attempt >= m.maxRetries {
			break
		}
		m.log.Debug("smbus retrying", "bus", b.id, "attempt", attempt, "max", m.maxRetries, "err", err)
	}
	if err != nil {
		m.log.Warn("smbus transfer failed", "bus", b.id, "dir", dir, "addr", fmt.Sprintf("%#02x", addr),
			"reg", fmt.Sprintf("%#02x", command), "size", size, "err", err)
		return 0, err
	}
	return transferCount(dir, size, data), nil
}

// transfer runs a single attempt under the master lock.
func (b *Bus) transfer(addr uint16, dir scd.Dir, command uint8, size scd.Size, data []byte) error {
	m := b.master
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.setState(Idle)
	return b.transferLocked(addr, dir, command, size, data)
}

// transferLocked issues the request phases, then drains and validates the
// matching responses. Any failure resets the master before returning so the
// fifo is clean for the retry.
func (b *Bus) transferLocked(addr uint16, dir scd.Dir, command uint8, size scd.Size, data []byte) (err error) {
	m := b.master
	defer func() {
		if err != nil {
			m.setState(Resetting)
			m.resetLocked()
		}
	}()

	// phase count and payload placement depend on the transfer shape
	var ss, dataOffset int
	switch size {
	case scd.Quick:
		ss = 1
	case scd.Byte:
		ss = 2
	case scd.ByteData:
		ss = 3
		if dir == scd.Read {
			ss = 4
		}
	case scd.WordData:
		ss = 4
		if dir == scd.Read {
			ss = 5
		}
	case scd.I2CBlockMsg:
		ss = 2 + len(data)
		if dir == scd.Read {
			ss = 3 + len(data)
		}
	case scd.I2CBlockData:
		dataOffset = 1
		ss = 2 + int(data[0])
		if dir == scd.Read {
			ss = 3 + int(data[0])
		}
	case scd.BlockData:
		if dir == scd.Read {
			if m.brSupported {
				if err := b.blockReadLocked(addr, command, data); err != nil {
					return fmt.Errorf("block read failed: %w", err)
				}
				return nil
			}
			// no hardware assist: probe the length with a byte-data
			// read, then run the sized transaction
			if err := b.transferLocked(addr, scd.Read, command, scd.ByteData, data); err != nil {
				return fmt.Errorf("block size: %w", err)
			}
			ss = 4 + int(data[0])
		} else {
			ss = 3 + int(data[0])
		}
	default:
		return fmt.Errorf("unsupported transfer size %s: %w", size, scd.ErrInvalid)
	}
	if ss > 63 {
		return fmt.Errorf("transfer of %d phases does not fit the controller: %w", ss, scd.ErrInvalid)
	}

	m.setState(Issuing)
	params := b.paramsFor(addr)
	req := regmap.SMBusRequest{
		BS:  uint8(b.id),
		T:   params.T,
		ST:  true,
		SS:  uint8(ss),
		DOD: true,
		D:   uint8(addr) << 1,
	}
	if size == scd.Quick || size == scd.Byte {
		req.D |= uint8(dir)
	}
	for i := 0; i < ss; i++ {
		if i == ss-1 {
			req.SP = true
			req.ED = params.ED
			if dir == scd.Read {
				req.DAT = params.DatR
			} else {
				req.DAT = params.DatW
			}
		}
		if i == 1 {
			req.ST = false
			req.SS = 0
			req.D = command
			req.DOD = ss != 2 || dir == scd.Write
		}
		if i == 2 && dir == scd.Read {
			req.ST = true
			req.D = uint8(addr)<<1 | 1
		}
		if i >= 2 && dir == scd.Write {
			req.D = data[dataOffset+i-2]
		}
		if i == 3 && dir == scd.Read {
			req.DOD = false
		}
		req.DA = !(req.DOD || req.SP)
		m.writeRequest(req)
		req.TI++
		req.ST = false
	}

	m.setState(AwaitingResponse)
	ti := uint8(0)
	for i := 0; i < ss; i++ {
		rsp := m.readResponse()
		if err := checkResponse(rsp, ti); err != nil {
			return err
		}
		ti++
		if dir != scd.Read {
			continue
		}
		switch size {
		case scd.Byte, scd.ByteData:
			if i == ss-1 {
				data[0] = rsp.D
			}
		case scd.WordData:
			if i == ss-2 {
				data[0] = rsp.D
			} else if i == ss-1 {
				data[1] = rsp.D
			}
		case scd.I2CBlockData:
			if i >= 3 {
				if i-2 >= len(data) {
					return fmt.Errorf("%d bytes from target %#02x overflow a %d byte buffer: %w",
						i-1, addr, len(data), scd.ErrInvalid)
				}
				data[i-2] = rsp.D
			}
		default:
			if i >= 3 {
				if i-3 >= len(data) {
					return fmt.Errorf("%d bytes from target %#02x overflow a %d byte buffer: %w",
						i-2, addr, len(data), scd.ErrInvalid)
				}
				data[i-3] = rsp.D
			}
		}
	}
	return nil
}

// blockReadLocked runs a hardware-assisted block read: three request phases
// arm the assist, the controller clocks the whole block in on its own, and
// the responses carry the count byte followed by the payload.
func (b *Bus) blockReadLocked(addr uint16, command uint8, data []byte) error {
	m := b.master
	m.setState(Issuing)
	params := b.paramsFor(addr)
	ss := 3
	req := regmap.SMBusRequest{
		BS:  uint8(b.id),
		T:   params.T,
		ST:  true,
		SS:  uint8(ss),
		DOD: true,
		D:   uint8(addr) << 1,
	}
	for i := 0; i < ss; i++ {
		if i == 1 {
			req.ST = false
			req.SS = 0
			req.D = command
		}
		if i == 2 {
			req.BR = true
			req.ST = true
			req.D = uint8(addr)<<1 | 1
		}
		req.DA = !(req.DOD || req.SP)
		m.writeRequest(req)
		req.TI++
	}
	ss++

	// the assist completion bound scales with the timing class
	steps := 100
	if int(params.T) < len(blockWaitSteps) {
		steps = blockWaitSteps[params.T]
	}
	m.setState(AwaitingResponse)
	ct := 0
	cs := m.readCtrlStatus()
	for cs.BRB && ct < steps {
		m.sleep(blockWaitStep)
		ct++
		cs = m.readCtrlStatus()
	}
	if ct == steps {
		return fmt.Errorf("block read still busy after %dms cs=%s: %w", steps, cs, scd.ErrTimeout)
	}

	ti := uint8(0)
	for i := 0; i < ss; i++ {
		rsp := m.readResponse()
		if err := checkResponse(rsp, ti); err != nil {
			return err
		}
		ti++
		if i == 3 {
			// count byte: the remaining responses carry that many bytes
			ss += int(rsp.D)
		}
		if i >= 3 {
			if i-3 >= len(data) {
				return fmt.Errorf("%d bytes from target %#02x overflow a %d byte buffer: %w",
					i-2, addr, len(data), scd.ErrInvalid)
			}
			data[i-3] = rsp.D
		}
	}
	return nil
}

// blockWaitSteps is the completion bound in milliseconds per timing class.
var blockWaitSteps = []int{5, 40, 505, 1005}

// checkResponse validates one response fifo entry against the expected
// transaction id. Every failure maps to the retryable protocol error.
func checkResponse(rsp regmap.SMBusResponse, ti uint8) error {
	reason := ""
	switch {
	case rsp.FE:
		reason = "fe"
	case rsp.AckError:
		reason = "ack"
	case rsp.TimeoutError:
		reason = "timeout"
	case rsp.BusConflictError:
		reason = "conflict"
	case rsp.Flushed:
		reason = "flush"
	case rsp.TI != ti&0x0f:
		reason = "tid"
	case rsp.FOE:
		reason = "overflow"
	default:
		return nil
	}
	return fmt.Errorf("%s error %s: %w", reason, rsp, scd.ErrIO)
}

func checkCapacity(dir scd.Dir, size scd.Size, data []byte) error {
	need := 0
	switch size {
	case scd.Byte:
		if dir == scd.Read {
			need = 1
		}
	case scd.ByteData:
		need = 1
	case scd.WordData:
		need = 2
	case scd.BlockData, scd.I2CBlockData:
		need = 1
	}
	if len(data) < need {
		return fmt.Errorf("%s needs a %d byte buffer, got %d: %w", size, need, len(data), scd.ErrInvalid)
	}
	// block writes carry their payload behind the count byte
	if dir == scd.Write && (size == scd.BlockData || size == scd.I2CBlockData) && len(data) < 1+int(data[0]) {
		return fmt.Errorf("%s declares %d bytes but the buffer holds %d: %w",
			size, data[0], len(data)-1, scd.ErrInvalid)
	}
	return nil
}

func transferCount(dir scd.Dir, size scd.Size, data []byte) int {
	switch size {
	case scd.Quick:
		return 0
	case scd.Byte, scd.ByteData:
		return 1
	case scd.WordData:
		return 2
	case scd.BlockData, scd.I2CBlockData:
		return int(data[0])
	case scd.I2CBlockMsg:
		return len(data)
	}
	return 0
}
