package scd

import (
	"errors"
	"fmt"
)

// Protocol errors detected on a response register. Transactions failing with
// ErrIO are replayed by the retry layer after a master reset; everything else
// aborts immediately.
var ErrIO = errors.New("bad response from bus controller")

// ErrInvalid covers configuration and capacity failures: duplicate ids,
// unsupported transfer shapes, addresses outside the register window,
// output buffers smaller than the data the hardware returns.
var ErrInvalid = errors.New("invalid request")

var ErrExists = errors.New("object already exists")

// ErrBusy is returned for registry mutation after the device finished
// initialization.
var ErrBusy = errors.New("device already initialized")

// ErrTimeout is returned when a bounded hardware wait elapses.
var ErrTimeout = errors.New("controller response timeout")

// ErrUnsupported is returned when the controller reports a state the driver
// does not know how to handle; never retried.
var ErrUnsupported = errors.New("unsupported controller state")

// Retryable reports whether a transaction failure should be replayed
// (after a master reset) rather than surfaced to the caller.
func Retryable(err error) bool {
	return errors.Is(err, ErrIO)
}

// Dir is the transfer direction of an SMBus transaction.
type Dir uint8

const (
	Write Dir = 0
	Read  Dir = 1
)

func (d Dir) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// Size is the SMBus transfer shape. The block shapes interpret the data
// buffer differently: BlockData and I2CBlockData carry their length in
// data[0] with the payload behind it, I2CBlockMsg treats the whole buffer
// as payload.
type Size uint8

const (
	Quick Size = iota
	Byte
	ByteData
	WordData
	BlockData
	I2CBlockData
	I2CBlockMsg
)

func (s Size) String() string {
	switch s {
	case Quick:
		return "quick"
	case Byte:
		return "byte"
	case ByteData:
		return "byte-data"
	case WordData:
		return "word-data"
	case BlockData:
		return "block-data"
	case I2CBlockData:
		return "i2c-block-data"
	case I2CBlockMsg:
		return "i2c-block-msg"
	}
	return fmt.Sprintf("size(%d)", uint8(s))
}

// RegisterIO is the access shim to the controller's register window.
// Accesses are atomic word-sized reads and writes, never cached.
type RegisterIO interface {
	ReadRegister(offset uint32) uint32
	WriteRegister(offset uint32, value uint32)
}

// Window is a register window with a known size, used to bounds-check
// addresses coming from configuration.
type Window interface {
	RegisterIO
	Size() uint32
}
