package mood

import (
	"math"
	"math/rand"
	"strings"
)

// Preset is a named manual mood, selectable from the setup UI or web panel.
type Preset struct {
	Name  string
	State State
}

// Presets returns the built-in manual moods, in display order.
func Presets() []Preset {
	return []Preset{
		{Name: "euphoric", State: New(0.9, 0.85, 0.95, 0.15)},
		{Name: "driving", State: New(0.8, 0.5, 0.6, 0.3)},
		{Name: "melancholy", State: New(0.3, 0.2, 0.15, 0.55)},
		{Name: "dreamy", State: New(0.4, 0.65, 0.45, 0.7)},
		{Name: "cerebral", State: New(0.35, 0.45, 0.2, 0.9)},
		{Name: "aggressive", State: New(0.95, 0.25, 0.5, 0.2)},
		{Name: "ambient", State: New(0.2, 0.55, 0.25, 0.8)},
	}
}

// PresetByName resolves a preset case-insensitively. The second return value
// reports whether the name was known.
func PresetByName(name string) (Preset, bool) {
	for _, p := range Presets() {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}

// DemoGenerator produces a slowly drifting synthetic mood for demo mode. The
// drift is seeded so a given seed replays the same session.
type DemoGenerator struct {
	rng     *rand.Rand
	elapsed float64
	phases  [4]float64
	rates   [4]float64
}

// NewDemoGenerator seeds a generator. Rates are picked once so each axis
// breathes on its own period.
func NewDemoGenerator(seed int64) *DemoGenerator {
	rng := rand.New(rand.NewSource(seed))
	g := &DemoGenerator{rng: rng}
	for i := range g.phases {
		g.phases[i] = rng.Float64() * 2 * math.Pi
		g.rates[i] = 0.02 + rng.Float64()*0.06
	}
	return g
}

// Next advances the generator by dt seconds and returns the current mood.
func (g *DemoGenerator) Next(dt float64) State {
	if dt > 0 {
		g.elapsed += dt
	}
	axis := func(i int, center, span float64) float64 {
		return center + span*math.Sin(2*math.Pi*g.rates[i]*g.elapsed+g.phases[i])
	}
	return New(
		axis(0, 0.55, 0.35),
		axis(1, 0.5, 0.4),
		axis(2, 0.5, 0.35),
		axis(3, 0.45, 0.3),
	)
}
