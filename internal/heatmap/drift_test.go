package heatmap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameMean(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, FrameMean(nil))
	assert.Equal(t, 5.0, FrameMean([]int16{5}))
	assert.Equal(t, 1.5, FrameMean([]int16{1, 2, 1, 2}))
	assert.Equal(t, -2.0, FrameMean([]int16{-1, -3}))
}

func TestDriftDetector_FirstFrameSeedsBaseline(t *testing.T) {
	t.Parallel()

	d := NewDriftDetector()
	sample := d.Update(100)

	assert.Equal(t, 100.0, sample.Mean)
	assert.Equal(t, 100.0, sample.SmoothedMean, "first frame must become the baseline as-is")
	assert.Equal(t, 0.0, sample.DriftRate)
	assert.False(t, sample.Calibrating)
}

func TestDriftDetector_ConvergesTowardConstantInput(t *testing.T) {
	t.Parallel()

	d := NewDriftDetector()
	d.Update(0)

	var last DriftSample
	for i := 0; i < 2000; i++ {
		last = d.Update(1000)
	}

	// The EMA approaches the input from below and never overshoots.
	assert.Greater(t, last.SmoothedMean, 900.0)
	assert.LessOrEqual(t, last.SmoothedMean, 1000.0)
}

func TestDriftDetector_SteadyInputIsIdempotent(t *testing.T) {
	t.Parallel()

	d := NewDriftDetector()
	var last DriftSample
	for i := 0; i < DriftWindow+100; i++ {
		last = d.Update(250)
	}

	assert.Equal(t, 250.0, last.SmoothedMean)
	assert.InDelta(t, 0, last.DriftRate, 1e-12)
	assert.False(t, last.Calibrating)
}

func TestDriftDetector_CalibrationEdges(t *testing.T) {
	t.Parallel()

	d := NewDriftDetector()

	// Fill the window with a flat signal first: the rate check only
	// engages once the history is full.
	for i := 0; i < DriftWindow; i++ {
		sample := d.Update(0)
		assert.False(t, sample.Calibrating, "flat signal must not look like calibration")
	}

	// A steep baseline ramp drives the drift rate over the threshold.
	var started, stopped int
	level := 0.0
	for i := 0; i < 3*DriftWindow; i++ {
		level += 50
		sample := d.Update(level)
		if sample.Started {
			started++
		}
		if sample.Stopped {
			stopped++
		}
	}
	require.Equal(t, 1, started, "rising edge must fire exactly once while the ramp lasts")
	require.Equal(t, 0, stopped)

	// Hold the level: the baseline settles and the falling edge fires once.
	// The EMA needs several time constants to slow back under the threshold.
	for i := 0; i < 8*DriftWindow; i++ {
		sample := d.Update(level)
		if sample.Started {
			started++
		}
		if sample.Stopped {
			stopped++
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
}

func TestDriftDetector_NegativeDriftDetected(t *testing.T) {
	t.Parallel()

	d := NewDriftDetector()
	for i := 0; i < DriftWindow; i++ {
		d.Update(10000)
	}

	level := 10000.0
	calibrated := false
	for i := 0; i < 3*DriftWindow; i++ {
		level -= 50
		if d.Update(level).Calibrating {
			calibrated = true
			break
		}
	}
	assert.True(t, calibrated, "threshold must apply to the magnitude of the rate")
}

func TestDriftDetector_ReplayAfterResetIsIdentical(t *testing.T) {
	t.Parallel()

	// A flat stretch followed by a ramp crosses both calibration edges,
	// so the replay exercises every field of the samples.
	input := make([]float64, 0, 4*DriftWindow)
	for i := 0; i < DriftWindow; i++ {
		input = append(input, 0)
	}
	level := 0.0
	for i := 0; i < 3*DriftWindow; i++ {
		level += 50
		input = append(input, level)
	}

	d := NewDriftDetector()
	run := func() []DriftSample {
		out := make([]DriftSample, 0, len(input))
		for _, mean := range input {
			out = append(out, d.Update(mean))
		}
		return out
	}

	first := run()
	d.Reset()
	second := run()

	assert.Equal(t, first, second, "a reset detector must reproduce the same sample sequence")
}

func TestDriftDetector_Reset(t *testing.T) {
	t.Parallel()

	d := NewDriftDetector()
	for i := 0; i < 100; i++ {
		d.Update(500)
	}
	d.Reset()

	sample := d.Update(42)
	assert.Equal(t, 42.0, sample.SmoothedMean)
	assert.Equal(t, 0.0, sample.DriftRate)
	assert.False(t, math.IsNaN(sample.DriftRate))
}
