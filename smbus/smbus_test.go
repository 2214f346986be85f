package smbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/scd"
	"github.com/mklimuk/scd/regmap"
)

func newTestMaster(t *testing.T, ver uint8, opts ...Option) (*Master, *busSim) {
	t.Helper()
	sim := newBusSim(0x8000, ver)
	opts = append(opts, WithSleep(func(time.Duration) {}))
	return NewMaster(sim, 3, 0x8000, DefaultBusCount, opts...), sim
}

func TestTransfer_ByteDataRoundTrip(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	ctx := context.Background()
	bus := m.Bus(0)

	require.NoError(t, bus.WriteByteData(ctx, 0x48, 0x10, 0xa5))
	got, err := bus.ReadByteData(ctx, 0x48, 0x10)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xa5), got)

	txns, resets, _ := sim.stats()
	assert.Equal(t, 2, txns)
	assert.Equal(t, 1, resets, "only the construction-time reset")
}

func TestTransfer_PhaseTable(t *testing.T) {
	tests := []struct {
		name   string
		dir    scd.Dir
		size   scd.Size
		data   []byte
		seed   []byte
		phases []int // per transaction, in issue order
	}{
		{"quick write", scd.Write, scd.Quick, nil, nil, []int{1}},
		{"quick read", scd.Read, scd.Quick, nil, nil, []int{1}},
		{"byte write", scd.Write, scd.Byte, nil, nil, []int{2}},
		{"byte read", scd.Read, scd.Byte, make([]byte, 1), nil, []int{2}},
		{"byte-data write", scd.Write, scd.ByteData, []byte{0xaa}, nil, []int{3}},
		{"byte-data read", scd.Read, scd.ByteData, make([]byte, 1), []byte{0xaa}, []int{4}},
		{"word-data write", scd.Write, scd.WordData, []byte{1, 2}, nil, []int{4}},
		{"word-data read", scd.Read, scd.WordData, make([]byte, 2), []byte{1, 2}, []int{5}},
		{"i2c-block-msg write", scd.Write, scd.I2CBlockMsg, []byte{1, 2, 3}, nil, []int{5}},
		{"i2c-block-msg read", scd.Read, scd.I2CBlockMsg, make([]byte, 3), []byte{1, 2, 3}, []int{6}},
		{"i2c-block-data write", scd.Write, scd.I2CBlockData, []byte{3, 1, 2, 3}, nil, []int{5}},
		{"i2c-block-data read", scd.Read, scd.I2CBlockData, []byte{3, 0, 0, 0}, []byte{1, 2, 3}, []int{6}},
		{"block-data write", scd.Write, scd.BlockData, []byte{3, 1, 2, 3}, nil, []int{6}},
		{"block-data read probes first", scd.Read, scd.BlockData, make([]byte, 8), []byte{3, 1, 2, 3}, []int{4, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sim := newTestMaster(t, 1)
			if tt.seed != nil {
				sim.seed(0, 0x48, 0x10, tt.seed)
			}
			_, err := m.Bus(0).Transfer(context.Background(), 0x48, tt.dir, 0x10, tt.size, tt.data)
			require.NoError(t, err)

			// split the request log at the start phases
			var groups [][]regmap.SMBusRequest
			for _, req := range sim.requests() {
				if req.ST && req.SS > 0 {
					groups = append(groups, nil)
				}
				groups[len(groups)-1] = append(groups[len(groups)-1], req)
			}
			require.Len(t, groups, len(tt.phases))
			for g, want := range tt.phases {
				require.Len(t, groups[g], want)
				assert.Equal(t, uint8(want), groups[g][0].SS)
				for i, req := range groups[g] {
					assert.Equal(t, uint8(i), req.TI, "transaction ids count up without gaps")
				}
			}
		})
	}
}

func TestTransfer_WordDataByteOrder(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	ctx := context.Background()
	bus := m.Bus(2)

	// low byte travels first
	sim.seed(2, 0x50, 0x06, []byte{0x34, 0x12})
	got, err := bus.ReadWordData(ctx, 0x50, 0x06)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), got)

	require.NoError(t, bus.WriteWordData(ctx, 0x50, 0x07, 0xbeef))
	assert.Equal(t, []byte{0xef, 0xbe}, sim.stored(2, 0x50, 0x07))
}

func TestTransfer_BlockDataProbeFallback(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	ctx := context.Background()
	assert.False(t, m.BlockReadSupported())

	sim.seed(0, 0x51, 0x20, []byte{5, 'h', 'e', 'l', 'l', 'o'})
	buf := make([]byte, 32)
	n, err := m.Bus(0).ReadBlockData(ctx, 0x51, 0x20, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf[:n]))

	// a length probe plus the sized transaction
	txns, _, _ := sim.stats()
	assert.Equal(t, 2, txns)
}

func TestTransfer_BlockDataHardwareAssist(t *testing.T) {
	m, sim := newTestMaster(t, 2)
	ctx := context.Background()
	assert.True(t, m.BlockReadSupported())

	sim.seed(0, 0x51, 0x20, []byte{4, 0xde, 0xad, 0xbe, 0xef})
	buf := make([]byte, 32)
	n, err := m.Bus(0).ReadBlockData(ctx, 0x51, 0x20, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, buf[:n])

	// the assist needs no probe transaction
	txns, _, _ := sim.stats()
	assert.Equal(t, 1, txns)
}

func TestTransfer_BlockDataAssistBusyTimeout(t *testing.T) {
	m, sim := newTestMaster(t, 2)
	sim.brb = true

	buf := make([]byte, 32)
	_, err := m.Bus(0).ReadBlockData(context.Background(), 0x51, 0x20, buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, scd.ErrTimeout)

	// a stuck assist is not a protocol failure, no point replaying it
	txns, _, _ := sim.stats()
	assert.Equal(t, 1, txns)
}

func TestTransfer_RetryExhaustion(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	sim.failTransactions(100)

	_, err := m.Bus(0).ReadByteData(context.Background(), 0x48, 0x10)
	require.Error(t, err)
	assert.ErrorIs(t, err, scd.ErrIO)

	txns, resets, _ := sim.stats()
	assert.Equal(t, DefaultMaxRetries, txns)
	assert.Equal(t, 1+DefaultMaxRetries, resets, "every failed attempt resets the master")
}

func TestTransfer_RecoversAfterTransientFailures(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	sim.seed(0, 0x48, 0x10, []byte{0x42})
	sim.failTransactions(2)

	got, err := m.Bus(0).ReadByteData(context.Background(), 0x48, 0x10)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x42), got)

	txns, resets, _ := sim.stats()
	assert.Equal(t, 3, txns)
	assert.Equal(t, 3, resets)
}

func TestTransfer_TransactionIDMismatch(t *testing.T) {
	m, sim := newTestMaster(t, 1, WithMaxRetries(2))
	sim.failSet = func(r *regmap.SMBusResponse) { r.TI++ }
	sim.failTransactions(100)

	_, err := m.Bus(0).ReadByteData(context.Background(), 0x48, 0x10)
	require.Error(t, err)
	assert.ErrorIs(t, err, scd.ErrIO)
	assert.ErrorContains(t, err, "tid")

	txns, _, _ := sim.stats()
	assert.Equal(t, 2, txns)
}

func TestTransfer_OutputOverflowKeepsCount(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	sim.seed(0, 0x51, 0x20, []byte{10, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	data := make([]byte, 4)
	_, err := m.Bus(0).Transfer(context.Background(), 0x51, scd.Read, 0x20, scd.BlockData, data)
	require.Error(t, err)
	assert.ErrorIs(t, err, scd.ErrInvalid)
	assert.Equal(t, uint8(10), data[0], "count byte survives the overflow")

	// capacity failures are final, never replayed
	txns, _, _ := sim.stats()
	assert.Equal(t, 2, txns, "length probe plus one sized attempt")
}

func TestTransfer_BlockDataWrite(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	require.NoError(t, m.Bus(1).WriteBlockData(context.Background(), 0x51, 0x30, []byte("abc")))
	assert.Equal(t, []byte{3, 'a', 'b', 'c'}, sim.stored(1, 0x51, 0x30))
}

func TestTransfer_I2CBlockData(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	ctx := context.Background()
	bus := m.Bus(0)

	wr := []byte{3, 0x11, 0x22, 0x33}
	_, err := bus.Transfer(ctx, 0x50, scd.Write, 0x00, scd.I2CBlockData, wr)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x22, 0x33}, sim.stored(0, 0x50, 0x00))

	rd := []byte{3, 0, 0, 0}
	n, err := bus.Transfer(ctx, 0x50, scd.Read, 0x00, scd.I2CBlockData, rd)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0x11, 0x22, 0x33}, rd[1:])
}

func TestTransfer_I2CBlockMsg(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	ctx := context.Background()
	bus := m.Bus(0)

	_, err := bus.Transfer(ctx, 0x50, scd.Write, 0x40, scd.I2CBlockMsg, []byte{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, sim.stored(0, 0x50, 0x40))

	rd := make([]byte, 2)
	n, err := bus.Transfer(ctx, 0x50, scd.Read, 0x40, scd.I2CBlockMsg, rd)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0xde, 0xad}, rd)
}

func TestTransfer_CapacityValidation(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	ctx := context.Background()
	bus := m.Bus(0)

	_, err := bus.Transfer(ctx, 0x48, scd.Read, 0x10, scd.ByteData, nil)
	assert.ErrorIs(t, err, scd.ErrInvalid)

	_, err = bus.Transfer(ctx, 0x48, scd.Write, 0x10, scd.BlockData, []byte{5, 1, 2})
	assert.ErrorIs(t, err, scd.ErrInvalid)

	// rejected before touching the hardware
	txns, _, _ := sim.stats()
	assert.Equal(t, 0, txns)
}

func TestTransfer_QuickAndByte(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	ctx := context.Background()
	bus := m.Bus(0)

	require.NoError(t, bus.WriteQuick(ctx, 0x48, scd.Write))
	require.NoError(t, bus.WriteByte(ctx, 0x48, 0x55))

	// nothing seeded behind the target, the wire floats high
	got, err := bus.ReadByte(ctx, 0x48)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xff), got)

	txns, _, _ := sim.stats()
	assert.Equal(t, 3, txns)
}

func TestTransfer_ContextCancelled(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Bus(0).ReadByteData(ctx, 0x48, 0x10)
	assert.ErrorIs(t, err, context.Canceled)

	txns, _, _ := sim.stats()
	assert.Equal(t, 0, txns)
}

func TestTransfer_AppliesTargetParams(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	bus := m.Bus(0)
	bus.SetParams(Params{Addr: 0x50, T: 3, DatR: 1, DatW: 2, ED: true})

	sim.seed(0, 0x50, 0x10, []byte{0x01})
	_, err := bus.ReadByteData(context.Background(), 0x50, 0x10)
	require.NoError(t, err)

	reqs := sim.requests()
	require.NotEmpty(t, reqs)
	last := reqs[len(reqs)-1]
	assert.True(t, last.SP)
	assert.True(t, last.ED)
	assert.Equal(t, uint8(3), last.T)
	assert.Equal(t, uint8(1), last.DAT, "read width")

	// an unconfigured target stays on the defaults
	sim.seed(0, 0x48, 0x10, []byte{0x02})
	_, err = bus.ReadByteData(context.Background(), 0x48, 0x10)
	require.NoError(t, err)
	reqs = sim.requests()
	last = reqs[len(reqs)-1]
	assert.Equal(t, DefaultParams.T, last.T)
	assert.Equal(t, DefaultParams.DatR, last.DAT)
	assert.False(t, last.ED)
}

func TestBus_SetParamsUpserts(t *testing.T) {
	m, _ := newTestMaster(t, 1)
	bus := m.Bus(0)

	bus.SetParams(Params{Addr: 0x50, T: 2, DatR: 3, DatW: 3})
	bus.SetParams(Params{Addr: 0x51, T: 1, DatR: 0, DatW: 0})
	bus.SetParams(Params{Addr: 0x50, T: 0, DatR: 1, DatW: 1, ED: true})

	ps := bus.Params()
	require.Len(t, ps, 2)
	assert.Equal(t, Params{Addr: 0x50, T: 0, DatR: 1, DatW: 1, ED: true}, ps[0])
	assert.Equal(t, uint16(0x51), ps[1].Addr)
}

func TestMaster_SerializesTransactions(t *testing.T) {
	m, sim := newTestMaster(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(busID int) {
			defer wg.Done()
			bus := m.Bus(busID)
			for i := 0; i < 25; i++ {
				v := uint8(busID<<4 | i)
				if err := bus.WriteByteData(ctx, 0x48, 0x10, v); err != nil {
					t.Error(err)
					return
				}
				got, err := bus.ReadByteData(ctx, 0x48, 0x10)
				if err != nil {
					t.Error(err)
					return
				}
				if got != v {
					t.Errorf("bus %d: wrote %#02x read %#02x", busID, v, got)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	_, _, maxOpen := sim.stats()
	assert.Equal(t, 1, maxOpen, "one transaction on the wire at a time")
	assert.Equal(t, Idle, m.State())
}

func TestMasters_TransferInParallel(t *testing.T) {
	noop := func(time.Duration) {}
	simA := newBusSim(0x8000, 1)
	simB := newBusSim(0x8100, 1)
	a := NewMaster(simA, 1, 0x8000, 2, WithSleep(noop))
	b := NewMaster(simB, 2, 0x8100, 2, WithSleep(noop))
	ctx := context.Background()

	// park a transfer on master a by holding its lock
	a.mu.Lock()
	aDone := make(chan error, 1)
	go func() {
		aDone <- a.Bus(0).WriteByteData(ctx, 0x48, 0x10, 0x01)
	}()

	// master b has its own lock and register block, nothing to wait for
	require.NoError(t, b.Bus(0).WriteByteData(ctx, 0x48, 0x10, 0x02))
	assert.Equal(t, []byte{0x02}, simB.stored(0, 0x48, 0x10))

	select {
	case err := <-aDone:
		t.Fatalf("transfer on the held master finished early: %v", err)
	default:
	}

	a.mu.Unlock()
	require.NoError(t, <-aDone)
	assert.Equal(t, []byte{0x01}, simA.stored(0, 0x48, 0x10))
}

func TestMaster_BusLookup(t *testing.T) {
	m, _ := newTestMaster(t, 1)
	assert.NotNil(t, m.Bus(0))
	assert.NotNil(t, m.Bus(DefaultBusCount-1))
	assert.Nil(t, m.Bus(DefaultBusCount))
	assert.Nil(t, m.Bus(-1))
	assert.Len(t, m.Buses(), DefaultBusCount)
	assert.Equal(t, uint32(3), m.ID())
}
