package beat

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veliks/moodpulse/internal/dsp"
)

const frameDt = 1.0 / 60

func TestDeterministicImpulseAtBeatOnset(t *testing.T) {
	// 120 BPM at 0ms: phase 0, peak impulse.
	assert.Equal(t, 1.0, DeterministicImpulse(120, 0, 4))
}

func TestDeterministicImpulseHalfBeat(t *testing.T) {
	// 120 BPM has a 500ms beat; 250ms is exactly half a beat.
	got := DeterministicImpulse(120, 250, 4)
	assert.InDelta(t, 0.0625, got, 1e-9)
}

func TestDeterministicImpulseBounds(t *testing.T) {
	for _, tempo := range []float64{0.5, 33, 60, 120, 174, 300} {
		for progress := 0.0; progress < 120000; progress += 173 {
			imp := DeterministicImpulse(tempo, progress, 6)
			assert.GreaterOrEqual(t, imp, 0.0, "tempo=%v progress=%v", tempo, progress)
			assert.LessOrEqual(t, imp, 1.0, "tempo=%v progress=%v", tempo, progress)
		}
	}
}

func TestDeterministicImpulseInvalidTempo(t *testing.T) {
	assert.Equal(t, 0.0, DeterministicImpulse(0, 1000, 6))
	assert.Equal(t, 0.0, DeterministicImpulse(-10, 1000, 6))
}

func TestTickDeterministicMode(t *testing.T) {
	e := NewEstimator(Options{})
	now := time.Now()

	imp := e.Tick(now, true, 120, 0, 0, frameDt)
	assert.Equal(t, 1.0, imp)
	assert.Equal(t, ModeDeterministic, e.Mode())
}

func TestTickIdleModeBreathes(t *testing.T) {
	e := NewEstimator(Options{})
	now := time.Now()

	var lo, hi float64 = 1, 0
	elapsed := 0.0
	for _i := 0; _i < 600; _i++ {
		imp := e.Tick(now, false, 0, 0, elapsed, frameDt)
		elapsed += frameDt
		lo = math.Min(lo, imp)
		hi = math.Max(hi, imp)
	}
	assert.Equal(t, ModeIdle, e.Mode())
	assert.Greater(t, hi, lo, "idle impulse oscillates")
	assert.Less(t, hi, 0.2, "idle impulse stays low amplitude")
	assert.GreaterOrEqual(t, lo, 0.0)
}

func TestTickLiveModePreferredWhileFresh(t *testing.T) {
	e := NewEstimator(Options{})
	now := time.Now()

	e.ObserveLive(dsp.BandFrame{Timestamp: now, Bass: 0.9})
	e.Tick(now, true, 120, 250, 0, frameDt)
	assert.Equal(t, ModeLive, e.Mode())

	// Once the live frame goes stale the estimator falls back to tempo mode.
	later := now.Add(time.Second)
	e.Tick(later, true, 120, 250, 1, frameDt)
	assert.Equal(t, ModeDeterministic, e.Mode())
}

func TestTickDropLiveFallsBack(t *testing.T) {
	e := NewEstimator(Options{})
	now := time.Now()

	e.ObserveLive(dsp.BandFrame{Timestamp: now, Bass: 0.9})
	e.Tick(now, false, 0, 0, 0, frameDt)
	assert.Equal(t, ModeLive, e.Mode())

	e.DropLive()
	e.Tick(now, false, 0, 0, 0, frameDt)
	assert.Equal(t, ModeIdle, e.Mode())
}

func TestImpulseDecaysSmoothlyOnPause(t *testing.T) {
	e := NewEstimator(Options{})
	now := time.Now()

	// Land on a beat onset, then pause.
	e.Tick(now, true, 120, 0, 0, frameDt)
	assert.Equal(t, 1.0, e.Impulse())

	prev := e.Impulse()
	for i := 0; i < 120; i++ {
		imp := e.Tick(now, false, 120, 0, float64(i)*frameDt, frameDt)
		drop := prev - imp
		assert.LessOrEqual(t, drop, 0.15, "release is gradual, never a cliff")
		prev = imp
	}
	assert.Less(t, e.Impulse(), 0.15, "impulse settles near the idle floor")
}
