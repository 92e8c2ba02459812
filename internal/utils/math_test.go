package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.5, 0.0, 1.0))
	assert.Equal(t, 1.0, Clamp(1.5, 0.0, 1.0))
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
	assert.Equal(t, 3, Clamp(7, 0, 3))
}

func TestLerp(t *testing.T) {
	assert.InDelta(t, 0.5, Lerp(0, 1, 0.5), 1e-9)
	assert.InDelta(t, 1.0, Lerp(0, 1, 2.0), 1e-9, "factor is clamped")
	assert.InDelta(t, 0.0, Lerp(0, 1, -1.0), 1e-9)
}

func TestApproachConverges(t *testing.T) {
	v := 0.0
	for _i := 0; _i < 300; _i++ {
		v = Approach(v, 1.0, 4.0, 1.0/60)
	}
	assert.InDelta(t, 1.0, v, 1e-3)
}

func TestApproachNoMovementWithoutTime(t *testing.T) {
	assert.Equal(t, 0.25, Approach(0.25, 1.0, 4.0, 0))
	assert.Equal(t, 0.25, Approach(0.25, 1.0, 0, 0.016))
}

func TestClampIndex(t *testing.T) {
	assert.Equal(t, 0, ClampIndex(-1, 5))
	assert.Equal(t, 4, ClampIndex(9, 5))
	assert.Equal(t, 0, ClampIndex(3, 0))
}
