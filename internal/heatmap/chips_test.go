package heatmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deviceWithPartID(partID uint16) *mockDevice {
	return &mockDevice{
		regs: map[[2]byte]byte{
			{0, 0x78}: byte(partID),
			{0, 0x79}: byte(partID >> 8),
		},
	}
}

func TestIdentifyChip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		partID uint16
		want   ChipVariant
	}{
		{0x0274, ChipPJP274},
		{0x0343, ChipPJP343},
		{0x0255, ChipPJP255},
		{0x0215, ChipPJP215},
		{0x0239, ChipPLP239},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.want.String(), func(t *testing.T) {
			t.Parallel()
			chip, err := IdentifyChip(deviceWithPartID(tt.partID))
			require.NoError(t, err)
			assert.Equal(t, tt.want, chip)
		})
	}
}

func TestIdentifyChip_UnknownPartID(t *testing.T) {
	t.Parallel()

	_, err := IdentifyChip(deviceWithPartID(0x1234))
	require.Error(t, err)

	var unsupported *UnsupportedChipError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, uint16(0x1234), unsupported.PartID)
}

func TestReadMatrixDims(t *testing.T) {
	t.Parallel()

	t.Run("PJP274 family reads user bank 0", func(t *testing.T) {
		t.Parallel()
		dev := &mockDevice{
			userRegs: map[[2]byte]byte{
				{0, 0x6E}: 12,
				{0, 0x6F}: 18,
			},
		}
		rows, cols, err := ReadMatrixDims(dev, ChipPJP274)
		require.NoError(t, err)
		assert.Equal(t, 12, rows)
		assert.Equal(t, 18, cols)
	})

	t.Run("PJP255 family reads drives and senses", func(t *testing.T) {
		t.Parallel()
		dev := &mockDevice{
			userRegs: map[[2]byte]byte{
				{0, 0x5A}: 15,
				{0, 0x59}: 12,
			},
		}
		rows, cols, err := ReadMatrixDims(dev, ChipPJP215)
		require.NoError(t, err)
		assert.Equal(t, 15, rows)
		assert.Equal(t, 12, cols)
	})

	t.Run("PLP239 stores count minus one", func(t *testing.T) {
		t.Parallel()
		dev := &mockDevice{
			regs: map[[2]byte]byte{
				{9, 0x01}: 11,
				{9, 0x02}: 17,
			},
		}
		rows, cols, err := ReadMatrixDims(dev, ChipPLP239)
		require.NoError(t, err)
		assert.Equal(t, 12, rows)
		assert.Equal(t, 18, cols)
	})
}

func TestReadFrame_PJP274_Sequence(t *testing.T) {
	t.Parallel()

	const rows, cols = 4, 6
	payload := make([]byte, rows*cols*2)
	for i := range payload {
		payload[i] = byte(i)
	}
	dev := &mockDevice{burst: payload, chunk: 16}

	data, err := ReadFrame(dev, ChipPJP274, rows, cols, 16)
	require.NoError(t, err)
	require.Len(t, data, rows*cols)
	assert.Equal(t, samplesFromBytes(payload), data)

	// The setup writes must arrive in order, ending with a single
	// chip-select deassert after the transfer.
	want := []regWrite{
		{report: reportSingle, bank: 6, addr: 0x0E, value: cols - 1},
		{report: reportSingle, bank: 6, addr: 0x0F, value: rows - 1},
		{report: reportSingle, bank: 6, addr: 0x09, value: 0x05},
		{report: reportSingle, bank: 6, addr: 0x0A, value: 0x00},
		{report: reportSingle, bank: 6, addr: 0x0A, value: 0x01},
	}
	assert.Equal(t, want, dev.writes)
}

func TestReadFrame_PJP274_BurstFailureSkipsDeassert(t *testing.T) {
	t.Parallel()

	// Empty burst responses abort the frame; the error must surface
	// without the deassert write being attempted afterwards.
	dev := &mockDevice{chunk: 0}

	_, err := ReadFrame(dev, ChipPJP274, 4, 6, 16)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortBurst))

	for _, w := range dev.writes {
		assert.False(t, w.addr == 0x0A && w.value == 0x01, "deassert must not follow a failed burst")
	}
}

func TestReadFrame_PJP255_Sequence(t *testing.T) {
	t.Parallel()

	const rows, cols = 15, 12
	payload := make([]byte, rows*cols*2)
	dev := &mockDevice{burst: payload, chunk: 32}

	data, err := ReadFrame(dev, ChipPJP255, rows, cols, 32)
	require.NoError(t, err)
	require.Len(t, data, rows*cols)

	want := []regWrite{
		{report: reportSingle, bank: 1, addr: 0x0D, value: 0x40},
		{report: reportSingle, bank: 1, addr: 0x0E, value: 0x06},
		{report: reportSingle, bank: 2, addr: 0x09, value: 0x05},
		{report: reportSingle, bank: 2, addr: 0x0A, value: 0x00},
		{report: reportSingle, bank: 2, addr: 0x0A, value: 0x01},
	}
	assert.Equal(t, want, dev.writes)
}

func TestReadFrame_PLP239_Sequence(t *testing.T) {
	t.Parallel()

	const rows, cols = 8, 8
	payload := make([]byte, rows*cols*2)
	dev := &mockDevice{
		burst: payload,
		chunk: 32,
		// Completion bit comes up on the third poll.
		readHook: func() func(bank, addr byte) (byte, bool) {
			polls := 0
			return func(bank, addr byte) (byte, bool) {
				if bank == 6 && addr == 0x27 {
					polls++
					if polls >= 3 {
						return 0x01, true
					}
					return 0x00, true
				}
				return 0, false
			}
		}(),
	}

	data, err := ReadFrame(dev, ChipPLP239, rows, cols, 32)
	require.NoError(t, err)
	require.Len(t, data, rows*cols)

	want := []regWrite{
		{report: reportSingle, bank: 6, addr: 0x20, value: 0xCC},
		{report: reportSingle, bank: 6, addr: 0x25, value: 0x77},
		{report: reportSingle, bank: 6, addr: 0x25, value: 0xDD},
		{report: reportSingle, bank: 4, addr: 0x1C, value: 0x00},
		{report: reportSingle, bank: 4, addr: 0x1D, value: 0x00},
		{report: reportSingle, bank: 6, addr: 0x25, value: 0x11},
		{report: reportSingle, bank: 6, addr: 0x25, value: 0xDD},
	}
	assert.Equal(t, want, dev.writes)

	// Exactly 3 status polls before the bit came up.
	statusReads := 0
	for _, r := range dev.readRequests {
		if r.bank == 6 && r.addr == 0x27 {
			statusReads++
		}
	}
	assert.Equal(t, 3, statusReads)
}

func TestReadFrame_PLP239_PollTimeoutProceeds(t *testing.T) {
	t.Parallel()

	const rows, cols = 4, 4
	payload := make([]byte, rows*cols*2)
	dev := &mockDevice{
		burst: payload,
		chunk: 16,
		regs:  map[[2]byte]byte{{6, 0x27}: 0x00}, // bit never comes up
	}

	// The poll limit being exhausted is logged, not fatal.
	data, err := ReadFrame(dev, ChipPLP239, rows, cols, 16)
	require.NoError(t, err)
	require.Len(t, data, rows*cols)

	statusReads := 0
	for _, r := range dev.readRequests {
		if r.bank == 6 && r.addr == 0x27 {
			statusReads++
		}
	}
	assert.Equal(t, plp239PollLimit, statusReads)
}

func TestReadFrame_WriteFailurePropagates(t *testing.T) {
	t.Parallel()

	dev := &mockDevice{
		burst:       make([]byte, 16),
		chunk:       16,
		failOnWrite: &regWrite{report: reportSingle, bank: 6, addr: 0x09, value: 0x05},
	}

	_, err := ReadFrame(dev, ChipPJP274, 2, 4, 16)
	require.Error(t, err)

	// The sequence stops at the failing write; nothing after it runs.
	want := []regWrite{
		{report: reportSingle, bank: 6, addr: 0x0E, value: 3},
		{report: reportSingle, bank: 6, addr: 0x0F, value: 1},
	}
	assert.Equal(t, want, dev.writes)
}
