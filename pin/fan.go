package pin

import (
	"fmt"

	"github.com/mklimuk/scd"
)

// fanPlatform describes the register layout of one fan controller
// generation. Offsets are relative to the group's base address; the
// per-slot blocks repeat with a fixed stride.
type fanPlatform struct {
	id          uint32
	maxFans     int
	platformReg uint32 // holds the platform id the hardware was built for
	maskPlat    uint32

	idReg    uint32 // per-slot fan model id, strided
	idStride uint32
	maskID   uint32

	presentReg uint32 // bit per slot
	okReg      uint32 // bit per slot, cleared on fault
	greenReg   uint32 // led bits per slot
	redReg     uint32

	speedReg    uint32 // per-slot speed block, strided
	speedStride uint32
	pwmOff      uint32 // within the speed block
	tachOff     uint32
	maskPWM     uint32
	maskTach    uint32

	infos []fanInfo
}

// fanInfo describes one fan model a platform knows how to drive.
type fanInfo struct {
	id      uint32
	hz      uint32 // tach reference clock
	pulses  uint32 // tach pulses per rotation
	forward bool   // airflow direction
	present bool
}

const (
	// fan led values, green/red combine to orange
	FanLEDOff    = 0
	FanLEDGreen  = 1
	FanLEDRed    = 2
	FanLEDOrange = 3
)

var fanPlatforms = []fanPlatform{
	{
		id: 3, maxFans: 4,
		platformReg: 0x00, maskPlat: 0xff,
		idReg: 0x180, idStride: 0x10, maskID: 0x1f,
		presentReg: 0x110, okReg: 0x120, greenReg: 0x130, redReg: 0x140,
		speedReg: 0x10, speedStride: 0x30, pwmOff: 0x00, tachOff: 0x10,
		maskPWM: 0xff, maskTach: 0xffff,
		infos: []fanInfo{
			{id: 0, hz: 100000, pulses: 2, forward: true, present: true},
			{id: 1, hz: 100000, pulses: 2, forward: false, present: true},
			{id: 0x1f, present: false},
		},
	},
	{
		id: 5, maxFans: 8,
		platformReg: 0x00, maskPlat: 0xff,
		idReg: 0x300, idStride: 0x10, maskID: 0x1f,
		presentReg: 0x210, okReg: 0x220, greenReg: 0x230, redReg: 0x240,
		speedReg: 0x10, speedStride: 0x40, pwmOff: 0x00, tachOff: 0x10,
		maskPWM: 0xff, maskTach: 0xffff,
		infos: []fanInfo{
			{id: 0, hz: 100000, pulses: 2, forward: true, present: true},
			{id: 1, hz: 100000, pulses: 2, forward: false, present: true},
			{id: 2, hz: 100000, pulses: 4, forward: true, present: true},
			{id: 0x1f, present: false},
		},
	},
}

func findFanPlatform(id uint32) *fanPlatform {
	for i := range fanPlatforms {
		if fanPlatforms[i].id == id {
			return &fanPlatforms[i]
		}
	}
	return nil
}

func (p *fanPlatform) findInfo(id uint32) *fanInfo {
	for i := range p.infos {
		if p.infos[i].id == id {
			return &p.infos[i]
		}
	}
	return nil
}

// FanGroup drives the fan slots of one controller block.
type FanGroup struct {
	io       scd.RegisterIO
	name     string
	addr     uint32
	platform *fanPlatform
	slots    []*fanInfo
}

// NewFanGroup probes the controller at addr for the given platform layout
// and identifies the fan model in each populated slot.
func NewFanGroup(io scd.RegisterIO, addr uint32, platformID uint32, fanCount int) (*FanGroup, error) {
	p := findFanPlatform(platformID)
	if p == nil {
		return nil, fmt.Errorf("unknown fan platform %d: %w", platformID, scd.ErrUnsupported)
	}
	if fanCount > p.maxFans {
		return nil, fmt.Errorf("platform %d has at most %d fans, got %d: %w",
			platformID, p.maxFans, fanCount, scd.ErrInvalid)
	}
	if got := io.ReadRegister(addr+p.platformReg) & p.maskPlat; got != platformID {
		return nil, fmt.Errorf("hardware reports fan platform %d, expected %d: %w",
			got, platformID, scd.ErrInvalid)
	}
	g := &FanGroup{
		io:       io,
		name:     fmt.Sprintf("fan_p%d", platformID),
		addr:     addr,
		platform: p,
	}
	for i := 0; i < fanCount; i++ {
		id := g.id(i)
		info := p.findInfo(id)
		if info == nil {
			return nil, fmt.Errorf("no information for fan%d with id %d: %w", i+1, id, scd.ErrInvalid)
		}
		g.slots = append(g.slots, info)
	}
	return g, nil
}

func (g *FanGroup) Name() string { return g.name }
func (g *FanGroup) Fans() int    { return len(g.slots) }

func (g *FanGroup) checkSlot(i int) error {
	if i < 0 || i >= len(g.slots) {
		return fmt.Errorf("fan group %s has %d slots, asked for %d: %w",
			g.name, len(g.slots), i, scd.ErrInvalid)
	}
	return nil
}

func (g *FanGroup) id(i int) uint32 {
	p := g.platform
	return g.io.ReadRegister(g.addr+p.idReg+uint32(i)*p.idStride) & p.maskID
}

// ID returns the model id strapped into the slot.
func (g *FanGroup) ID(i int) (uint32, error) {
	if err := g.checkSlot(i); err != nil {
		return 0, err
	}
	return g.id(i), nil
}

func (g *FanGroup) Present(i int) (bool, error) {
	if err := g.checkSlot(i); err != nil {
		return false, err
	}
	reg := g.io.ReadRegister(g.addr + g.platform.presentReg)
	return reg&(1<<uint(i)) != 0, nil
}

// Fault reports whether the slot's ok bit dropped.
func (g *FanGroup) Fault(i int) (bool, error) {
	if err := g.checkSlot(i); err != nil {
		return false, err
	}
	reg := g.io.ReadRegister(g.addr + g.platform.okReg)
	return reg&(1<<uint(i)) == 0, nil
}

func (g *FanGroup) PWM(i int) (uint8, error) {
	if err := g.checkSlot(i); err != nil {
		return 0, err
	}
	p := g.platform
	reg := g.io.ReadRegister(g.addr + p.speedReg + uint32(i)*p.speedStride + p.pwmOff)
	return uint8(reg & p.maskPWM), nil
}

func (g *FanGroup) SetPWM(i int, value uint8) error {
	if err := g.checkSlot(i); err != nil {
		return err
	}
	p := g.platform
	g.io.WriteRegister(g.addr+p.speedReg+uint32(i)*p.speedStride+p.pwmOff, uint32(value))
	return nil
}

// Speed converts the slot's tach counter to rotations per minute. A zero
// counter means the rotor is not spinning, which has no meaningful rpm.
func (g *FanGroup) Speed(i int) (uint32, error) {
	if err := g.checkSlot(i); err != nil {
		return 0, err
	}
	p := g.platform
	info := g.slots[i]
	tach := g.io.ReadRegister(g.addr+p.speedReg+uint32(i)*p.speedStride+p.tachOff) & p.maskTach
	if tach == 0 || info.pulses == 0 {
		return 0, fmt.Errorf("fan%d reports no rotation: %w", i+1, scd.ErrInvalid)
	}
	return info.hz * 60 / tach / info.pulses, nil
}

// Airflow reports the slot's airflow direction.
func (g *FanGroup) Airflow(i int) (string, error) {
	if err := g.checkSlot(i); err != nil {
		return "", err
	}
	if g.slots[i].forward {
		return "forward", nil
	}
	return "reverse", nil
}

// LED returns the combined led value of the slot.
func (g *FanGroup) LED(i int) (int, error) {
	if err := g.checkSlot(i); err != nil {
		return 0, err
	}
	p := g.platform
	green := g.io.ReadRegister(g.addr + p.greenReg)
	red := g.io.ReadRegister(g.addr + p.redReg)
	val := FanLEDOff
	if green&(1<<uint(i)) != 0 {
		val |= FanLEDGreen
	}
	if red&(1<<uint(i)) != 0 {
		val |= FanLEDRed
	}
	return val, nil
}

func (g *FanGroup) SetLED(i int, value int) error {
	if err := g.checkSlot(i); err != nil {
		return err
	}
	p := g.platform
	green := g.io.ReadRegister(g.addr + p.greenReg)
	red := g.io.ReadRegister(g.addr + p.redReg)
	if value&FanLEDGreen != 0 {
		green |= 1 << uint(i)
	} else {
		green &^= 1 << uint(i)
	}
	if value&FanLEDRed != 0 {
		red |= 1 << uint(i)
	} else {
		red &^= 1 << uint(i)
	}
	g.io.WriteRegister(g.addr+p.greenReg, green)
	g.io.WriteRegister(g.addr+p.redReg, red)
	return nil
}
