// Package mmio provides register window implementations: a mmap'd window
// over a device resource file and an in-memory window for tools and tests.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mem is an in-memory register window. Reads outside the window return all
// ones, the way a dead bus would.
type Mem struct {
	regs []uint32
}

func NewMem(size uint32) *Mem {
	return &Mem{regs: make([]uint32, size/4)}
}

func (m *Mem) ReadRegister(offset uint32) uint32 {
	i := offset / 4
	if int(i) >= len(m.regs) {
		return ^uint32(0)
	}
	return atomic.LoadUint32(&m.regs[i])
}

func (m *Mem) WriteRegister(offset uint32, value uint32) {
	i := offset / 4
	if int(i) >= len(m.regs) {
		return
	}
	atomic.StoreUint32(&m.regs[i], value)
}

func (m *Mem) Size() uint32 {
	return uint32(len(m.regs)) * 4
}

// Map is a register window memory-mapped from a resource file (a PCI BAR
// resource or an equivalent device node). Word accesses go straight to the
// mapping, uncached.
type Map struct {
	f    *os.File
	data []byte
}

func Open(path string) (*Map, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open resource %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not stat resource %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not map resource %s: %w", path, err)
	}
	return &Map{f: f, data: data}, nil
}

func (m *Map) ReadRegister(offset uint32) uint32 {
	if int(offset)+4 > len(m.data) {
		return ^uint32(0)
	}
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&m.data[offset])))
}

func (m *Map) WriteRegister(offset uint32, value uint32) {
	if int(offset)+4 > len(m.data) {
		return
	}
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&m.data[offset])), value)
}

func (m *Map) Size() uint32 {
	return uint32(len(m.data))
}

func (m *Map) Close() error {
	if err := unix.Munmap(m.data); err != nil {
		_ = m.f.Close()
		return fmt.Errorf("could not unmap resource: %w", err)
	}
	return m.f.Close()
}
