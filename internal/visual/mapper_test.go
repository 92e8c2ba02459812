package visual

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veliks/moodpulse/internal/mood"
)

func TestMapIsDeterministic(t *testing.T) {
	s := mood.New(0.7, 0.4, 0.8, 0.3)
	a := Map(s, 0.9, 12.34, 0.5)
	b := Map(s, 0.9, 12.34, 0.5)
	assert.Equal(t, a, b)
}

func TestMapHueFollowsValence(t *testing.T) {
	sad := Map(mood.New(0.5, 0.0, 0.5, 0.5), 0, 0, 0)
	happy := Map(mood.New(0.5, 1.0, 0.5, 0.5), 0, 0, 0)
	assert.Equal(t, 225.0, sad.Hue, "low valence is cold blue")
	assert.Equal(t, 40.0, happy.Hue, "high valence is warm amber")
}

func TestMapEnergyDrivesSaturationAndParticles(t *testing.T) {
	calm := Map(mood.New(0.0, 0.5, 0.5, 0.5), 0, 0, 0)
	wild := Map(mood.New(1.0, 0.5, 0.5, 0.5), 0, 0, 0)

	assert.Less(t, calm.Saturation, wild.Saturation)
	assert.Less(t, calm.ParticleActivity, wild.ParticleActivity)
	assert.Less(t, calm.ParticleSpeed, wild.ParticleSpeed)
	assert.Less(t, calm.DistortionAmp, wild.DistortionAmp)
}

func TestMapCognitionDrivesDistortionFrequency(t *testing.T) {
	smooth := Map(mood.New(0.5, 0.5, 0.5, 0.0), 0, 0, 0)
	spiky := Map(mood.New(0.5, 0.5, 0.5, 1.0), 0, 0, 0)
	assert.Equal(t, 1.0, smooth.DistortionFreq)
	assert.Equal(t, 8.0, spiky.DistortionFreq)
}

func TestMapRingSweep(t *testing.T) {
	p := Map(mood.New(0.5, 0.5, 0.5, 0.5), 0, 0, 0.25)
	assert.InDelta(t, math.Pi/2, p.RingSweep, 1e-9)
	assert.Equal(t, -math.Pi/2, p.RingStart, "ring starts at the top")

	full := Map(mood.New(0.5, 0.5, 0.5, 0.5), 0, 0, 2.0)
	assert.InDelta(t, 2*math.Pi, full.RingSweep, 1e-9, "ratio is clamped")
}

func TestSparkleRequiresEuphoriaAndPeakImpulse(t *testing.T) {
	assert.Equal(t, 0.0, sparkle(0.5, 1.0), "no sparkle below the euphoria cutoff")
	assert.Equal(t, 0.0, sparkle(0.9, 0.5), "no sparkle off-peak")
	assert.Greater(t, sparkle(0.9, 0.95), 0.0)
	assert.LessOrEqual(t, sparkle(1.0, 1.0), 1.0)
}

func TestMaterialDecisionTable(t *testing.T) {
	cases := []struct {
		name string
		s    mood.State
		want Material
	}{
		{"glass wins on high cognition", mood.New(0.8, 0.3, 0.5, 0.9), MaterialGlass},
		{"metallic on hard dark energy", mood.New(0.8, 0.3, 0.5, 0.5), MaterialMetallic},
		{"neon on euphoric energy", mood.New(0.7, 0.8, 0.8, 0.5), MaterialNeon},
		{"magma on raw low-cognition energy", mood.New(0.6, 0.6, 0.3, 0.1), MaterialMagma},
		{"velvet on warm calm", mood.New(0.3, 0.8, 0.3, 0.5), MaterialVelvet},
		{"matte otherwise", mood.New(0.5, 0.5, 0.5, 0.5), MaterialMatte},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MaterialFor(tc.s))
		})
	}
}

func TestShapeOffsetBoundedAndShared(t *testing.T) {
	p := Map(mood.New(0.9, 0.5, 0.5, 0.8), 1.0, 5.0, 0.5)
	for angle := 0.0; angle < 2*math.Pi; angle += 0.1 {
		off := ShapeOffset(p, angle)
		assert.LessOrEqual(t, math.Abs(off), p.DistortionAmp)
	}
	// Same params, same angle: identical offset for blob and ring.
	assert.Equal(t, ShapeOffset(p, 1.0), ShapeOffset(p, 1.0))
}

func TestNoise1DDeterministicAndBounded(t *testing.T) {
	for x := -50.0; x < 50; x += 0.37 {
		v := Noise1D(x)
		assert.Equal(t, v, Noise1D(x))
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.NotEqual(t, Noise1D(1.3), Noise1D(7.9))
}
