// Package dsp reduces raw microphone frames to the handful of band-energy
// floats the beat estimator consumes. Nothing downstream ever sees raw
// samples.
package dsp

import (
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/veliks/moodpulse/internal/utils"
)

// BandFrame is the per-frame reduction of a spectrum into three normalized
// band energies plus overall level.
type BandFrame struct {
	Timestamp time.Time
	Bass      float64
	Mid       float64
	Treble    float64
	RMS       float64
}

// Analyzer transforms mono frames into normalized band energies. Bins are
// partitioned by fraction of the spectrum: the lowest 5% feed bass, the next
// 25% mid, and the remainder treble. Scratch buffers are reused to keep
// per-frame allocations flat.
type Analyzer struct {
	frameSize     int
	window        []float64
	windowedFrame []float64
	magnitudes    []float64

	peaks [3]*peakTracker
}

// NewAnalyzer constructs an Analyzer for the given frame size.
func NewAnalyzer(frameSize int) *Analyzer {
	if frameSize <= 0 {
		panic("dsp: frameSize must be > 0")
	}
	a := &Analyzer{
		frameSize:     frameSize,
		window:        HannWindow(frameSize),
		windowedFrame: make([]float64, frameSize),
		magnitudes:    make([]float64, frameSize/2+1),
	}
	for i := range a.peaks {
		a.peaks[i] = newPeakTracker()
	}
	return a
}

// Process computes the band frame for a mono frame. The frame length must
// match the configured frameSize.
func (a *Analyzer) Process(frame []float64, ts time.Time) BandFrame {
	if len(frame) != a.frameSize {
		panic("dsp: frame length mismatch")
	}

	copy(a.windowedFrame, frame)
	ApplyWindowInPlace(a.windowedFrame, a.window)

	spectrum := fft.FFTReal(a.windowedFrame)
	half := len(spectrum)/2 + 1
	if len(a.magnitudes) != half {
		a.magnitudes = make([]float64, half)
	}
	for i := 0; i < half; i++ {
		a.magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	bassEnd := max(1, half*5/100)
	midEnd := max(bassEnd+1, half*30/100)

	raw := [3]float64{
		meanMagnitude(a.magnitudes[:bassEnd]),
		meanMagnitude(a.magnitudes[bassEnd:midEnd]),
		meanMagnitude(a.magnitudes[midEnd:]),
	}

	var norm [3]float64
	for i, v := range raw {
		norm[i] = a.peaks[i].normalize(v)
	}

	return BandFrame{
		Timestamp: ts,
		Bass:      norm[0],
		Mid:       norm[1],
		Treble:    norm[2],
		RMS:       RootMeanSquare(frame),
	}
}

// peakTracker normalizes a magnitude against a decaying peak envelope, with a
// slow noise floor so silence maps to zero instead of full scale.
type peakTracker struct {
	peak  float64
	floor float64
}

func newPeakTracker() *peakTracker {
	return &peakTracker{peak: 1e-2, floor: 1e-4}
}

func (p *peakTracker) normalize(v float64) float64 {
	p.floor += 0.01 * (v - p.floor)
	if v > p.peak {
		p.peak += 0.34 * (v - p.peak)
	} else {
		p.peak += 0.02 * (v - p.peak)
	}
	if p.peak < p.floor*1.5 {
		p.peak = p.floor * 1.5
	}
	return utils.Clamp((v-p.floor)/(p.peak-p.floor+1e-9), 0.0, 1.0)
}

func meanMagnitude(mags []float64) float64 {
	if len(mags) == 0 {
		return 0
	}
	var sum float64
	for _, m := range mags {
		sum += m
	}
	return sum / float64(len(mags))
}

// RootMeanSquare computes the RMS value of a frame.
func RootMeanSquare(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sumSquares float64
	for _, sample := range frame {
		sumSquares += sample * sample
	}
	return math.Sqrt(sumSquares / float64(len(frame)))
}

// ToMono averages interleaved multi-channel data into a mono frame.
func ToMono(samples []float32, channels int, dst []float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frameLen := len(samples) / channels
	if cap(dst) < frameLen {
		dst = make([]float64, frameLen)
	} else {
		dst = dst[:frameLen]
	}
	if frameLen == 0 {
		return dst
	}
	idx := 0
	for i := 0; i < frameLen; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(samples[idx])
			idx++
		}
		dst[i] = sum / float64(channels)
	}
	return dst
}

// HannWindow returns a precomputed Hann window for the requested size.
func HannWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	window := make([]float64, n)
	if n == 1 {
		window[0] = 1
		return window
	}
	for i := 0; i < n; i++ {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return window
}

// ApplyWindowInPlace multiplies samples by a window function in-place.
func ApplyWindowInPlace(samples []float64, window []float64) {
	switch {
	case len(samples) == 0:
		return
	case len(samples) != len(window):
		panic("dsp: window length mismatch")
	}
	for i := range samples {
		samples[i] *= window[i]
	}
}

// Smoother implements a simple exponential moving average.
type Smoother struct {
	alpha       float64
	initialized bool
	value       float64
}

// NewSmoother constructs a Smoother using the supplied alpha (0..1).
// Smaller values produce heavier smoothing.
func NewSmoother(alpha float64) *Smoother {
	alpha = utils.Clamp(alpha, 0.0, 1.0)
	return &Smoother{alpha: alpha}
}

// Step updates the internal state and returns the smoothed value.
func (s *Smoother) Step(v float64) float64 {
	if !s.initialized {
		s.value = v
		s.initialized = true
		return v
	}
	s.value += s.alpha * (v - s.value)
	return s.value
}

// Value returns the current smoothed value without updating it.
func (s *Smoother) Value() float64 {
	return s.value
}

// Reset clears the smoother so the next Step seeds it.
func (s *Smoother) Reset() {
	s.initialized = false
	s.value = 0
}
