package visual

import "github.com/veliks/moodpulse/internal/mood"

// Material is the discrete surface style bucket for the scene blob.
type Material int

const (
	MaterialMatte Material = iota
	MaterialGlass
	MaterialMetallic
	MaterialNeon
	MaterialVelvet
	MaterialMagma
)

// String returns a human-friendly name for the material.
func (m Material) String() string {
	switch m {
	case MaterialGlass:
		return "glass"
	case MaterialMetallic:
		return "metallic"
	case MaterialNeon:
		return "neon"
	case MaterialVelvet:
		return "velvet"
	case MaterialMagma:
		return "magma"
	default:
		return "matte"
	}
}

type materialRule struct {
	match    func(mood.State) bool
	material Material
}

// materialRules is evaluated top to bottom; the first matching predicate
// wins. Kept as an explicit ordered table so the cutoffs stay auditable.
var materialRules = []materialRule{
	{func(s mood.State) bool { return s.Cognition > 0.8 }, MaterialGlass},
	{func(s mood.State) bool { return s.Energy > 0.75 && s.Valence < 0.4 }, MaterialMetallic},
	{func(s mood.State) bool { return s.Euphoria > 0.7 && s.Energy > 0.6 }, MaterialNeon},
	{func(s mood.State) bool { return s.Energy > 0.55 && s.Cognition < 0.25 }, MaterialMagma},
	{func(s mood.State) bool { return s.Valence > 0.65 && s.Energy < 0.45 }, MaterialVelvet},
}

// MaterialFor classifies a mood into its visual material bucket.
func MaterialFor(s mood.State) Material {
	for _, rule := range materialRules {
		if rule.match(s) {
			return rule.material
		}
	}
	return MaterialMatte
}
