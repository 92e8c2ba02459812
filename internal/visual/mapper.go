// Package visual maps the current mood, beat impulse, and playback progress
// onto concrete rendering parameters. Map is a pure function: renderers and
// the web bridge consume Params as plain data every frame.
package visual

import (
	"math"

	"github.com/veliks/moodpulse/internal/mood"
	"github.com/veliks/moodpulse/internal/utils"
)

// Params is the per-frame output consumed by renderers. It has no lifecycle
// of its own; it is recomputed every frame and never stored.
type Params struct {
	// Primary color as HSV: hue in degrees [0,360), sat/value in [0,1].
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Value      float64 `json:"value"`

	Material Material `json:"material"`

	// Shape distortion: noise frequency (cycles around the blob contour) and
	// radial amplitude as a fraction of base radius.
	DistortionFreq float64 `json:"distortionFreq"`
	DistortionAmp  float64 `json:"distortionAmp"`

	// Particle field controls, all normalized.
	ParticleActivity   float64 `json:"particleActivity"`
	ParticleSpeed      float64 `json:"particleSpeed"`
	ParticleBrightness float64 `json:"particleBrightness"`
	Sparkle            float64 `json:"sparkle"`

	// Progress ring: angular sweep in radians from RingStart (top of the
	// circle), matching the blob contour via the shared noise offset.
	RingSweep float64 `json:"ringSweep"`
	RingStart float64 `json:"ringStart"`

	// Elapsed scene time, re-exported so renderers can evaluate ShapeOffset
	// without extra plumbing.
	Elapsed float64 `json:"elapsed"`
}

// Reference hues for the valence axis: low valence sits in cold blue, high
// valence in warm amber.
const (
	hueCold = 225.0
	hueWarm = 40.0

	ringStartRad = -math.Pi / 2
)

// Map computes rendering parameters from the effective mood, the beat
// impulse, elapsed scene time (seconds), and the playback progress ratio.
// Identical inputs always produce identical outputs.
func Map(s mood.State, impulse, elapsed, progressRatio float64) Params {
	s = s.Clamped()
	impulse = utils.Clamp(impulse, 0.0, 1.0)
	progressRatio = utils.Clamp(progressRatio, 0.0, 1.0)

	return Params{
		Hue:        hueCold + (hueWarm-hueCold)*s.Valence,
		Saturation: utils.Clamp(0.35+0.6*s.Energy, 0.0, 1.0),
		Value:      utils.Clamp(0.4+0.4*s.Energy+0.2*impulse, 0.0, 1.0),

		Material: MaterialFor(s),

		DistortionFreq: 1 + 7*s.Cognition,
		DistortionAmp:  (0.1 + 0.5*s.Energy) * (0.55 + 0.45*impulse),

		ParticleActivity:   utils.Clamp(0.08+0.92*s.Energy, 0.0, 1.0),
		ParticleSpeed:      0.2 + 1.4*s.Energy,
		ParticleBrightness: utils.Clamp(0.35+0.45*s.Euphoria+0.2*impulse, 0.0, 1.0),
		Sparkle:            sparkle(s.Euphoria, impulse),

		RingSweep: 2 * math.Pi * progressRatio,
		RingStart: ringStartRad,

		Elapsed: elapsed,
	}
}

// sparkle produces the occasional bright flash: only when euphoria is high
// and the impulse is near its peak.
func sparkle(euphoria, impulse float64) float64 {
	if euphoria <= 0.6 || impulse <= 0.85 {
		return 0
	}
	return utils.Clamp(((impulse-0.85)/0.15)*((euphoria-0.6)/0.4), 0.0, 1.0)
}

// ShapeOffset evaluates the radial noise offset for an angle on the blob
// contour. The progress ring uses the same function so its radius follows
// the blob. Result is in [-DistortionAmp, DistortionAmp].
func ShapeOffset(p Params, angle float64) float64 {
	x := angle/(2*math.Pi)*p.DistortionFreq + p.Elapsed*0.6
	return Noise1D(x) * p.DistortionAmp
}
