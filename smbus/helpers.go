package smbus

import (
	"context"

	"github.com/mklimuk/scd"
)

// Typed wrappers around Transfer for the common transaction shapes.

func (b *Bus) WriteQuick(ctx context.Context, addr uint16, bit scd.Dir) error {
	_, err := b.Transfer(ctx, addr, bit, 0, scd.Quick, nil)
	return err
}

func (b *Bus) ReadByte(ctx context.Context, addr uint16) (uint8, error) {
	var data [1]byte
	_, err := b.Transfer(ctx, addr, scd.Read, 0, scd.Byte, data[:])
	return data[0], err
}

func (b *Bus) WriteByte(ctx context.Context, addr uint16, value uint8) error {
	_, err := b.Transfer(ctx, addr, scd.Write, value, scd.Byte, nil)
	return err
}

func (b *Bus) ReadByteData(ctx context.Context, addr uint16, reg uint8) (uint8, error) {
	var data [1]byte
	_, err := b.Transfer(ctx, addr, scd.Read, reg, scd.ByteData, data[:])
	return data[0], err
}

func (b *Bus) WriteByteData(ctx context.Context, addr uint16, reg uint8, value uint8) error {
	data := [1]byte{value}
	_, err := b.Transfer(ctx, addr, scd.Write, reg, scd.ByteData, data[:])
	return err
}

func (b *Bus) ReadWordData(ctx context.Context, addr uint16, reg uint8) (uint16, error) {
	var data [2]byte
	_, err := b.Transfer(ctx, addr, scd.Read, reg, scd.WordData, data[:])
	return uint16(data[0]) | uint16(data[1])<<8, err
}

func (b *Bus) WriteWordData(ctx context.Context, addr uint16, reg uint8, value uint16) error {
	data := [2]byte{uint8(value), uint8(value >> 8)}
	_, err := b.Transfer(ctx, addr, scd.Write, reg, scd.WordData, data[:])
	return err
}

// ReadBlockData fills buf with the block the target returns for reg and
// reports its length. The buffer needs one spare byte for the count.
func (b *Bus) ReadBlockData(ctx context.Context, addr uint16, reg uint8, buf []byte) (int, error) {
	data := make([]byte, len(buf)+1)
	n, err := b.Transfer(ctx, addr, scd.Read, reg, scd.BlockData, data)
	if err != nil {
		return 0, err
	}
	copy(buf, data[1:1+n])
	return n, nil
}

func (b *Bus) WriteBlockData(ctx context.Context, addr uint16, reg uint8, payload []byte) error {
	data := make([]byte, len(payload)+1)
	data[0] = uint8(len(payload))
	copy(data[1:], payload)
	_, err := b.Transfer(ctx, addr, scd.Write, reg, scd.BlockData, data)
	return err
}
