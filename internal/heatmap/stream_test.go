package heatmap

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamTestDevice() *mockDevice {
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}
	return &mockDevice{
		regs: map[[2]byte]byte{
			{0, 0x78}: 0x74,
			{0, 0x79}: 0x02,
		},
		userRegs: map[[2]byte]byte{
			{0, 0x6E}: 4,
			{0, 0x6F}: 6,
		},
		burst: payload,
		chunk: 16,
	}
}

func TestStream_ProducesFrames(t *testing.T) {
	dev := streamTestDevice()

	frames := make(chan HeatmapFrame)
	cmds := make(chan AlcCommand, 1)
	stop := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- Stream(dev, StreamConfig{BurstLen: 16}, frames, cmds, stop)
	}()

	var got []HeatmapFrame
	for i := 0; i < 3; i++ {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a frame")
		}
	}

	cmds <- AlcEnable

	close(stop)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream did not stop")
	}

	for _, f := range got {
		assert.Equal(t, 4, f.Rows)
		assert.Equal(t, 6, f.Cols)
		assert.Len(t, f.Data, 24)
	}

	// First frame seeds the baseline, so mean and smoothed mean agree.
	assert.Equal(t, got[0].Mean, got[0].SmoothedMean)
	assert.False(t, got[0].Calibrating)

	// The channel closes when the loop exits.
	for range frames {
	}
}

func TestStream_ColsOverrideReshapesFrames(t *testing.T) {
	// PJP215 reporting a 15x12 matrix, displayed with 10 columns.
	payload := make([]byte, 256)
	dev := &mockDevice{
		regs: map[[2]byte]byte{
			{0, 0x78}: 0x15,
			{0, 0x79}: 0x02,
		},
		userRegs: map[[2]byte]byte{
			{0, 0x5A}: 15,
			{0, 0x59}: 12,
		},
		burst: payload,
		chunk: 32,
	}

	frames := make(chan HeatmapFrame)
	stop := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- Stream(dev, StreamConfig{BurstLen: 32, ColsOverride: 10}, frames, nil, stop)
	}()

	select {
	case f := <-frames:
		// 180 samples redisplayed as 18 rows of 10; sample count unchanged.
		assert.Equal(t, 18, f.Rows)
		assert.Equal(t, 10, f.Cols)
		assert.Len(t, f.Data, 180)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	close(stop)
	require.NoError(t, <-done)
	for range frames {
	}
}

func TestStream_UnknownChipFailsSetup(t *testing.T) {
	dev := streamTestDevice()
	dev.regs[[2]byte{0, 0x78}] = 0x99
	dev.regs[[2]byte{0, 0x79}] = 0x09

	frames := make(chan HeatmapFrame)
	stop := make(chan struct{})

	err := Stream(dev, StreamConfig{BurstLen: 16}, frames, nil, stop)
	require.Error(t, err)

	var unsupported *UnsupportedChipError
	assert.True(t, errors.As(err, &unsupported))

	// The channel is closed even on setup failure.
	_, open := <-frames
	assert.False(t, open)
}

func TestStream_AlcCommandWritesControlRegister(t *testing.T) {
	dev := streamTestDevice()

	frames := make(chan HeatmapFrame)
	cmds := make(chan AlcCommand, 1)
	stop := make(chan struct{})
	done := make(chan error, 1)

	cmds <- AlcDisable

	go func() {
		done <- Stream(dev, StreamConfig{BurstLen: 16}, frames, cmds, stop)
	}()

	select {
	case <-frames:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	close(stop)
	require.NoError(t, <-done)
	for range frames {
	}

	// PJP274 family control register lives at bank 0, 0x6A.
	found := false
	for _, w := range dev.writes {
		if w.bank == 0 && w.addr == 0x6A && w.value == alcCtrlDisable {
			found = true
		}
	}
	assert.True(t, found, "queued command must be applied before the first frame")
}
