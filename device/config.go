package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mklimuk/scd"
	"github.com/mklimuk/scd/smbus"
)

// MaxConfigLineSize bounds a single configuration line.
const MaxConfigLineSize = 100

// ParseObjects consumes new-object configuration, one object per line:
//
//	smbus_master <addr> <id> [bus_count]
//	mdio_master <addr> <id> <bus_count> <speed>
//	mdio_device <master> <bus> <id> <prtad> <devad> <clause>
//	gpio <addr> <name> <bitpos> <ro> <active_low>
//	reset <addr> <name> <bitpos>
//	led <addr> <name>
//	sfp <addr> <id>
//	qsfp <addr> <id>
//	osfp <addr> <id>
//	fan_group <addr> <platform> <fan_count>
//
// Numbers accept the usual prefixes (0x..., 0...). Parsing stops at the
// first bad line.
func (d *Device) ParseObjects(text string) error {
	return eachLine(text, d.parseObjectLine)
}

func eachLine(text string, parse func(fields []string) error) error {
	for i, line := range strings.Split(text, "\n") {
		if len(line) >= MaxConfigLineSize {
			return fmt.Errorf("line %d is too long: %w", i+1, scd.ErrInvalid)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := parse(fields); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

func (d *Device) parseObjectLine(fields []string) error {
	kind, args := fields[0], fields[1:]
	switch kind {
	case "smbus_master":
		if len(args) != 2 && len(args) != 3 {
			return badArgs(kind)
		}
		addr, err := parseU32(args[0])
		if err != nil {
			return err
		}
		id, err := parseU32(args[1])
		if err != nil {
			return err
		}
		busCount := smbus.DefaultBusCount
		if len(args) == 3 {
			n, err := parseU32(args[2])
			if err != nil {
				return err
			}
			busCount = int(n)
		}
		return d.AddSMBusMaster(addr, id, busCount)
	case "mdio_master":
		if len(args) != 4 {
			return badArgs(kind)
		}
		addr, err := parseU32(args[0])
		if err != nil {
			return err
		}
		id, err := parseU32(args[1])
		if err != nil {
			return err
		}
		busCount, err := parseU32(args[2])
		if err != nil {
			return err
		}
		speed, err := parseU8(args[3])
		if err != nil {
			return err
		}
		return d.AddMDIOMaster(addr, id, int(busCount), speed)
	case "mdio_device":
		if len(args) != 6 {
			return badArgs(kind)
		}
		var vals [6]uint64
		for i, a := range args {
			v, err := strconv.ParseUint(a, 0, 16)
			if err != nil {
				return fmt.Errorf("bad number %q: %w", a, scd.ErrInvalid)
			}
			vals[i] = v
		}
		return d.AddMDIODevice(uint16(vals[0]), uint16(vals[1]), uint16(vals[2]),
			uint8(vals[3]), uint8(vals[4]), vals[5] == 45)
	case "gpio":
		if len(args) != 5 {
			return badArgs(kind)
		}
		addr, err := parseU32(args[0])
		if err != nil {
			return err
		}
		bit, err := parseU32(args[2])
		if err != nil {
			return err
		}
		ro, err := parseBool(args[3])
		if err != nil {
			return err
		}
		al, err := parseBool(args[4])
		if err != nil {
			return err
		}
		return d.AddGPIO(addr, args[1], uint(bit), ro, al)
	case "reset":
		if len(args) != 3 {
			return badArgs(kind)
		}
		addr, err := parseU32(args[0])
		if err != nil {
			return err
		}
		bit, err := parseU32(args[2])
		if err != nil {
			return err
		}
		return d.AddReset(addr, args[1], uint(bit))
	case "led":
		if len(args) != 2 {
			return badArgs(kind)
		}
		addr, err := parseU32(args[0])
		if err != nil {
			return err
		}
		return d.AddLED(addr, args[1])
	case "sfp", "qsfp", "osfp":
		if len(args) != 2 {
			return badArgs(kind)
		}
		addr, err := parseU32(args[0])
		if err != nil {
			return err
		}
		id, err := parseU32(args[1])
		if err != nil {
			return err
		}
		switch kind {
		case "sfp":
			return d.AddSFP(addr, id)
		case "qsfp":
			return d.AddQSFP(addr, id)
		default:
			return d.AddOSFP(addr, id)
		}
	case "fan_group":
		if len(args) != 3 {
			return badArgs(kind)
		}
		addr, err := parseU32(args[0])
		if err != nil {
			return err
		}
		platform, err := parseU32(args[1])
		if err != nil {
			return err
		}
		fanCount, err := parseU32(args[2])
		if err != nil {
			return err
		}
		return d.AddFanGroup(addr, platform, int(fanCount))
	}
	return fmt.Errorf("unknown object %q: %w", kind, scd.ErrInvalid)
}

// ParseBusParams consumes per-target transfer tunings, one per line:
//
//	<bus> <addr> <t> <datr> <datw> <ed>
//
// where bus is the device-wide bus number.
func (d *Device) ParseBusParams(text string) error {
	return eachLine(text, d.parseBusParamLine)
}

func (d *Device) parseBusParamLine(fields []string) error {
	if len(fields) != 6 {
		return fmt.Errorf("want <bus> <addr> <t> <datr> <datw> <ed>: %w", scd.ErrInvalid)
	}
	nr, err := parseU32(fields[0])
	if err != nil {
		return err
	}
	addr, err := parseU32(fields[1])
	if err != nil {
		return err
	}
	p := smbus.Params{Addr: uint16(addr)}
	if p.T, err = parseU8(fields[2]); err != nil {
		return err
	}
	if p.DatR, err = parseU8(fields[3]); err != nil {
		return err
	}
	if p.DatW, err = parseU8(fields[4]); err != nil {
		return err
	}
	ed, err := parseU8(fields[5])
	if err != nil {
		return err
	}
	p.ED = ed != 0
	return d.SetBusParams(int(nr), p)
}

// DumpBusParams renders every configured tuning, one line per target, with
// the device-wide bus number it answers to.
func (d *Device) DumpBusParams() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var sb strings.Builder
	for _, e := range d.smbusMasters {
		for i, bus := range e.master.Buses() {
			for _, p := range bus.Params() {
				fmt.Fprintf(&sb, "%d/%d/%02x: adap=%d t=%d datr=%d datw=%d ed=%d\n",
					e.master.ID(), bus.ID(), p.Addr, e.baseNr+i,
					p.T, p.DatR, p.DatW, boolToInt(p.ED))
			}
		}
	}
	return sb.String()
}

func badArgs(kind string) error {
	return fmt.Errorf("bad arguments for %s: %w", kind, scd.ErrInvalid)
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", s, scd.ErrInvalid)
	}
	return uint32(v), nil
}

func parseU8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", s, scd.ErrInvalid)
	}
	return uint8(v), nil
}

func parseBool(s string) (bool, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return false, fmt.Errorf("bad flag %q: %w", s, scd.ErrInvalid)
	}
	return v != 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
