// Package clock keeps a visually smooth playback position between the coarse
// authoritative updates delivered by the polling loop.
package clock

import (
	"math"

	"github.com/veliks/moodpulse/internal/utils"
)

// Options tunes the convergence behaviour of a Clock.
type Options struct {
	// SnapThresholdMs is the authoritative delta beyond which the clock snaps
	// instead of blending. Large jumps are treated as seeks or track changes.
	SnapThresholdMs float64
	// ConvergeRate is the per-second exponential rate used to close small
	// drift between the smoothed position and the authoritative target.
	ConvergeRate float64
}

// Clock extrapolates playback progress locally and reconciles it against the
// last authoritative poll. Smoothed progress is monotonic non-decreasing
// while playing and between authoritative updates; only an explicit seek or a
// large authoritative jump may move it backwards.
type Clock struct {
	opts Options

	smoothedMs float64
	targetMs   float64
	durationMs float64
	playing    bool
	hasTarget  bool
}

// New returns a Clock with defaulted options.
func New(opts Options) *Clock {
	if opts.SnapThresholdMs <= 0 {
		opts.SnapThresholdMs = 2000
	}
	if opts.ConvergeRate <= 0 {
		opts.ConvergeRate = 3.0
	}
	return &Clock{opts: opts}
}

// OnAuthoritativeUpdate applies a polled playback state. Deltas beyond the
// snap threshold move the smoothed position immediately; smaller drift is
// closed gradually over the following ticks.
func (c *Clock) OnAuthoritativeUpdate(progressMs, durationMs float64, playing bool) {
	c.durationMs = math.Max(durationMs, 0)
	progressMs = c.clampToTrack(progressMs)

	if !c.hasTarget || math.Abs(progressMs-c.smoothedMs) > c.opts.SnapThresholdMs {
		c.smoothedMs = progressMs
	}
	c.targetMs = progressMs
	c.hasTarget = true
	c.playing = playing
}

// Tick advances the clock by one render frame. While playing the smoothed
// position moves forward at nominal speed and blends toward the extrapolated
// authoritative target; while paused it freezes.
func (c *Clock) Tick(deltaMs float64) {
	if deltaMs <= 0 || !c.playing {
		return
	}

	c.targetMs = c.clampToTrack(c.targetMs + deltaMs)

	candidate := c.smoothedMs + deltaMs
	if c.hasTarget {
		candidate = utils.Approach(candidate, c.targetMs, c.opts.ConvergeRate, deltaMs/1000)
	}
	// When the authoritative target is behind, hold position and let the
	// target catch up rather than stepping backwards.
	if candidate < c.smoothedMs {
		candidate = c.smoothedMs
	}
	c.smoothedMs = c.clampToTrack(candidate)
}

// Seek moves the smoothed position immediately. Used for explicit local
// seeks, where a visible discontinuity is expected.
func (c *Clock) Seek(progressMs float64) {
	progressMs = c.clampToTrack(progressMs)
	c.smoothedMs = progressMs
	c.targetMs = progressMs
	c.hasTarget = true
}

// Reset returns the clock to the start of a new track.
func (c *Clock) Reset() {
	c.smoothedMs = 0
	c.targetMs = 0
	c.durationMs = 0
	c.hasTarget = false
	c.playing = false
}

// SetPlaying toggles extrapolation without touching position. Used for
// optimistic local play/pause ahead of the next poll.
func (c *Clock) SetPlaying(playing bool) {
	c.playing = playing
}

// SmoothedMs returns the current smoothed playback position.
func (c *Clock) SmoothedMs() float64 { return c.smoothedMs }

// DurationMs returns the current track duration, 0 when unknown.
func (c *Clock) DurationMs() float64 { return c.durationMs }

// Playing reports whether the clock is extrapolating.
func (c *Clock) Playing() bool { return c.playing }

// ProgressRatio returns smoothed/duration clamped to [0,1]. A zero or
// negative duration reports 0 rather than dividing.
func (c *Clock) ProgressRatio() float64 {
	if c.durationMs <= 0 {
		return 0
	}
	return utils.Clamp(c.smoothedMs/c.durationMs, 0.0, 1.0)
}

func (c *Clock) clampToTrack(ms float64) float64 {
	if ms < 0 {
		return 0
	}
	if c.durationMs > 0 && ms > c.durationMs {
		return c.durationMs
	}
	if c.durationMs <= 0 {
		// Unknown duration: never let progress run ahead of it.
		return 0
	}
	return ms
}
