package device

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/scd"
	"github.com/mklimuk/scd/mdio"
	"github.com/mklimuk/scd/mmio"
	"github.com/mklimuk/scd/smbus"
)

func newTestDevice(t *testing.T) (*Device, *mmio.Mem) {
	t.Helper()
	win := mmio.NewMem(0x10000)
	d := New(win,
		WithSMBusOptions(smbus.WithSleep(func(time.Duration) {})),
		WithMDIOOptions(mdio.WithClock(func(time.Duration) {}, time.Now)),
	)
	return d, win
}

const testObjects = `smbus_master 0x8000 1 8
smbus_master 0x8100 2 2
mdio_master 0x9000 1 4 2
mdio_device 1 0 7 4 1 45
gpio 0x5000 psu1_present 0 1 0
gpio 0x5000 mux_reset 1 0 1
reset 0x4000 phy_reset 3
led 0x6050 status
sfp 0xa000 1
qsfp 0xa010 1
osfp 0xa020 1
fan_group 0x7000 3 2`

func TestParseObjects_FullConfig(t *testing.T) {
	d, win := newTestDevice(t)
	win.WriteRegister(0x7000, 3) // fan platform id the hardware reports

	require.NoError(t, d.ParseObjects(testObjects))

	assert.Len(t, d.SMBusMasters(), 2)
	assert.Len(t, d.MDIOMasters(), 1)
	assert.NotNil(t, d.MDIODevice(1, 0, 7))
	assert.NotNil(t, d.GPIO("psu1_present"))
	assert.NotNil(t, d.GPIO("mux_reset"))
	assert.NotNil(t, d.Reset("phy_reset"))
	assert.NotNil(t, d.LED("status"))
	assert.NotNil(t, d.Xcvr("sfp1"))
	assert.NotNil(t, d.Xcvr("qsfp1"))
	assert.NotNil(t, d.Xcvr("osfp1"))
	assert.Len(t, d.FanGroups(), 1)
}

func TestParseObjects_Validation(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"unknown object", "frobnicator 0x1000 1", scd.ErrInvalid},
		{"missing arguments", "smbus_master 0x8000", scd.ErrInvalid},
		{"extra arguments", "led 0x6050 status extra", scd.ErrInvalid},
		{"bad number", "smbus_master zzz 1", scd.ErrInvalid},
		{"address outside window", "smbus_master 0x20000 1", scd.ErrInvalid},
		{"too long", "led 0x6050 " + strings.Repeat("x", MaxConfigLineSize), scd.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDevice(t)
			assert.ErrorIs(t, d.ParseObjects(tt.line), tt.want)
		})
	}
}

func TestAdd_DuplicateIDs(t *testing.T) {
	d, _ := newTestDevice(t)
	require.NoError(t, d.AddSMBusMaster(0x8000, 1, 2))
	assert.ErrorIs(t, d.AddSMBusMaster(0x8100, 1, 2), scd.ErrExists)

	require.NoError(t, d.AddMDIOMaster(0x9000, 1, 2, 2))
	assert.ErrorIs(t, d.AddMDIOMaster(0x9100, 1, 2, 2), scd.ErrExists)

	require.NoError(t, d.AddLED(0x6050, "status"))
	assert.ErrorIs(t, d.AddLED(0x6054, "status"), scd.ErrExists)

	require.NoError(t, d.AddSFP(0xa000, 1))
	assert.ErrorIs(t, d.AddSFP(0xa004, 1), scd.ErrExists)

	require.NoError(t, d.AddMDIODevice(1, 0, 7, 4, 1, true))
	assert.ErrorIs(t, d.AddMDIODevice(1, 0, 7, 5, 2, false), scd.ErrExists)
}

func TestAdd_AfterFinishInit(t *testing.T) {
	d, _ := newTestDevice(t)
	require.NoError(t, d.AddSMBusMaster(0x8000, 1, 2))
	d.FinishInit()
	assert.True(t, d.Initialized())

	assert.ErrorIs(t, d.AddSMBusMaster(0x8100, 2, 2), scd.ErrBusy)
	assert.ErrorIs(t, d.AddGPIO(0x5000, "late", 0, false, false), scd.ErrBusy)
	assert.ErrorIs(t, d.AddLED(0x6050, "late"), scd.ErrBusy)
}

func TestAdd_MDIODeviceNeedsMasterAndBus(t *testing.T) {
	d, _ := newTestDevice(t)
	assert.ErrorIs(t, d.AddMDIODevice(9, 0, 1, 4, 1, true), scd.ErrInvalid)

	require.NoError(t, d.AddMDIOMaster(0x9000, 1, 2, 2))
	assert.ErrorIs(t, d.AddMDIODevice(1, 5, 1, 4, 1, true), scd.ErrInvalid)
}

func TestBus_GlobalNumbering(t *testing.T) {
	d, _ := newTestDevice(t)
	require.NoError(t, d.AddSMBusMaster(0x8000, 1, 8))
	require.NoError(t, d.AddSMBusMaster(0x8100, 2, 2))

	// master 1 holds 0..7, master 2 continues at 8
	b := d.Bus(8)
	require.NotNil(t, b)
	assert.Equal(t, uint32(2), b.Master().ID())
	assert.Equal(t, uint32(0), b.ID())

	b = d.Bus(9)
	require.NotNil(t, b)
	assert.Equal(t, uint32(1), b.ID())

	assert.Nil(t, d.Bus(10))
	assert.Nil(t, d.Bus(-1))
}

func TestBusParams_ParseAndDump(t *testing.T) {
	d, _ := newTestDevice(t)
	require.NoError(t, d.AddSMBusMaster(0x8000, 1, 8))
	require.NoError(t, d.AddSMBusMaster(0x8100, 2, 2))

	require.NoError(t, d.ParseBusParams("9 0x50 2 1 1 1\n0 0x48 0 3 3 0"))

	assert.ErrorIs(t, d.ParseBusParams("42 0x50 1 3 3 0"), scd.ErrInvalid)
	assert.ErrorIs(t, d.ParseBusParams("9 0x50 1 3"), scd.ErrInvalid)

	dump := d.DumpBusParams()
	assert.Contains(t, dump, "1/0/48: adap=0 t=0 datr=3 datw=3 ed=0\n")
	assert.Contains(t, dump, "2/1/50: adap=9 t=2 datr=1 datw=1 ed=1\n")

	// the tuning actually lands on the bus
	p := d.Bus(9).Params()
	require.Len(t, p, 1)
	assert.Equal(t, smbus.Params{Addr: 0x50, T: 2, DatR: 1, DatW: 1, ED: true}, p[0])
}

func TestRemoveAll_ByKind(t *testing.T) {
	d, _ := newTestDevice(t)
	require.NoError(t, d.AddSMBusMaster(0x8000, 1, 2))
	require.NoError(t, d.AddMDIOMaster(0x9000, 1, 2, 2))
	require.NoError(t, d.AddMDIODevice(1, 0, 7, 4, 1, true))

	d.RemoveAllSMBus()
	assert.Empty(t, d.SMBusMasters())
	assert.Nil(t, d.Bus(0))
	assert.Len(t, d.MDIOMasters(), 1)

	d.RemoveAllMDIO()
	assert.Empty(t, d.MDIOMasters())
	assert.Nil(t, d.MDIODevice(1, 0, 7))
}

func TestSetBusParams(t *testing.T) {
	d, _ := newTestDevice(t)
	require.NoError(t, d.AddSMBusMaster(0x8000, 1, 2))

	p := smbus.Params{Addr: 0x48, T: 2, DatR: 1, DatW: 1}
	require.NoError(t, d.SetBusParams(1, p))
	assert.ErrorIs(t, d.SetBusParams(5, p), scd.ErrInvalid)

	got := d.Bus(1).Params()
	require.Len(t, got, 1)
	assert.Equal(t, p, got[0])
}

func TestClose_DropsEverything(t *testing.T) {
	d, win := newTestDevice(t)
	win.WriteRegister(0x7000, 3)
	require.NoError(t, d.ParseObjects(testObjects))
	d.FinishInit()

	d.Close()
	assert.False(t, d.Initialized())
	assert.Empty(t, d.SMBusMasters())
	assert.Empty(t, d.MDIOMasters())
	assert.Nil(t, d.Bus(0))
	assert.Nil(t, d.GPIO("psu1_present"))
	assert.Empty(t, d.FanGroups())
}

func TestProfile_LoadAndApply(t *testing.T) {
	raw := `name: test-board
objects:
  - smbus_master 0x8000 1 8
  - gpio 0x5000 psu1_present 0 1 0
  - led 0x6050 status
tweaks:
  - 0 0x48 2 1 1 0
`
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "test-board", p.Name)
	require.Len(t, p.Objects, 3)

	d, _ := newTestDevice(t)
	require.NoError(t, d.Apply(p))
	assert.True(t, d.Initialized())
	assert.NotNil(t, d.GPIO("psu1_present"))

	params := d.Bus(0).Params()
	require.Len(t, params, 1)
	assert.Equal(t, uint16(0x48), params[0].Addr)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
