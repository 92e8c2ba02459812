// Package beat derives the per-frame rhythmic impulse that drives beat-synced
// visual punches. With no live audio the pulse is computed deterministically
// from tempo and playback position; with a microphone it follows bass-band
// energy; with nothing at all it falls back to a slow idle breath.
package beat

import (
	"math"
	"time"

	"github.com/veliks/moodpulse/internal/dsp"
	"github.com/veliks/moodpulse/internal/utils"
)

// Mode reports which rhythm source produced the current impulse.
type Mode int

const (
	// ModeIdle is the breathing fallback used when nothing is playing.
	ModeIdle Mode = iota
	// ModeDeterministic derives the pulse from tempo and playback position.
	ModeDeterministic
	// ModeLive derives the pulse from microphone band energy.
	ModeLive
)

// String returns a human-friendly name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeDeterministic:
		return "tempo"
	case ModeLive:
		return "live"
	default:
		return "idle"
	}
}

// Options tunes the Estimator.
type Options struct {
	// Sharpness is the pulse decay exponent. Higher values produce a shorter,
	// punchier kick. Valid range 4..10.
	Sharpness int
	// LiveAlpha is the EMA factor applied to live-mode impulses to suppress
	// frame-to-frame jitter.
	LiveAlpha float64
	// LiveStale is how long a microphone band frame stays usable before the
	// estimator falls back to deterministic or idle mode.
	LiveStale time.Duration
	// DecayRate is the per-second exponential release applied when the
	// rhythmic source weakens or pauses, so the impulse never drops abruptly.
	DecayRate float64
	// IdleFloor and IdleAmplitude shape the breathing fallback.
	IdleFloor     float64
	IdleAmplitude float64
	// IdlePeriod is the breathing cycle length in seconds.
	IdlePeriod float64
}

// Estimator produces impulse values in [0,1] once per render frame.
type Estimator struct {
	opts Options

	smoother *dsp.Smoother
	impulse  float64
	mode     Mode

	liveBass float64
	liveAt   time.Time
}

// NewEstimator returns an Estimator with defaulted options.
func NewEstimator(opts Options) *Estimator {
	if opts.Sharpness < 4 || opts.Sharpness > 10 {
		opts.Sharpness = 6
	}
	if opts.LiveAlpha <= 0 || opts.LiveAlpha >= 1 {
		opts.LiveAlpha = 0.88
	}
	if opts.LiveStale <= 0 {
		opts.LiveStale = 250 * time.Millisecond
	}
	if opts.DecayRate <= 0 {
		opts.DecayRate = 6.0
	}
	if opts.IdleFloor <= 0 {
		opts.IdleFloor = 0.06
	}
	if opts.IdleAmplitude <= 0 {
		opts.IdleAmplitude = 0.04
	}
	if opts.IdlePeriod <= 0 {
		opts.IdlePeriod = 8.0
	}
	return &Estimator{
		opts:     opts,
		smoother: dsp.NewSmoother(opts.LiveAlpha),
	}
}

// DeterministicImpulse computes the phase-in-beat pulse for a tempo and
// playback position. Pure; always in [0,1]. Non-positive tempo yields 0.
func DeterministicImpulse(tempoBPM, progressMs float64, sharpness int) float64 {
	if tempoBPM <= 0 || progressMs < 0 {
		return 0
	}
	if sharpness < 1 {
		sharpness = 1
	}
	msPerBeat := 60000.0 / tempoBPM
	phase := math.Mod(progressMs/msPerBeat, 1.0)
	return utils.Clamp(math.Pow(1-phase, float64(sharpness)), 0.0, 1.0)
}

// ObserveLive feeds the latest microphone band frame. Live mode stays active
// as long as frames keep arriving within the staleness window.
func (e *Estimator) ObserveLive(frame dsp.BandFrame) {
	e.liveBass = frame.Bass
	e.liveAt = frame.Timestamp
}

// DropLive discards live input, e.g. after the capture stream is released.
func (e *Estimator) DropLive() {
	e.liveAt = time.Time{}
	e.smoother.Reset()
}

// Tick computes the impulse for the current frame. elapsed is scene time in
// seconds, dt the frame delta in seconds.
func (e *Estimator) Tick(now time.Time, playing bool, tempoBPM, progressMs, elapsed, dt float64) float64 {
	var target float64
	switch {
	case e.liveActive(now):
		e.mode = ModeLive
		shaped := math.Pow(utils.Clamp(e.liveBass, 0.0, 1.0), 1.5)
		target = e.smoother.Step(shaped)
	case playing && tempoBPM > 0:
		e.mode = ModeDeterministic
		target = DeterministicImpulse(tempoBPM, progressMs, e.opts.Sharpness)
	default:
		e.mode = ModeIdle
		target = e.idleImpulse(elapsed)
	}

	// Sharp attack, smooth release: rises follow the source immediately,
	// falls are bounded by the decay envelope.
	decayed := e.impulse * math.Exp(-e.opts.DecayRate*math.Max(dt, 0))
	e.impulse = utils.Clamp(math.Max(target, decayed), 0.0, 1.0)
	return e.impulse
}

// Impulse returns the last computed impulse.
func (e *Estimator) Impulse() float64 { return e.impulse }

// Mode returns the rhythm source used on the last tick.
func (e *Estimator) Mode() Mode { return e.mode }

func (e *Estimator) liveActive(now time.Time) bool {
	return !e.liveAt.IsZero() && now.Sub(e.liveAt) <= e.opts.LiveStale
}

func (e *Estimator) idleImpulse(elapsed float64) float64 {
	phase := 2 * math.Pi * elapsed / e.opts.IdlePeriod
	return e.opts.IdleFloor + e.opts.IdleAmplitude*math.Sin(phase)
}
